package usecase

import "context"

// noRetry runs the operation once. Used when the store has no transient errors.
type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}

func retrierOrDefault(r Retrier) Retrier {
	if r == nil {
		return noRetry{}
	}
	return r
}
