package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iho/leaveledger/internal/domain"
)

// ErrNoSnapshot is returned by Load when no snapshot has been published yet.
var ErrNoSnapshot = errors.New("no directory snapshot stored")

type snapshotPayload struct {
	Employees []*domain.Employee `json:"employees"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// DirectorySnapshotStore shares the last good directory snapshot between instances.
type DirectorySnapshotStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewDirectorySnapshotStore creates a new DirectorySnapshotStore. A zero ttl keeps the
// snapshot until it is overwritten.
func NewDirectorySnapshotStore(client *redis.Client, ttl time.Duration) *DirectorySnapshotStore {
	return &DirectorySnapshotStore{
		client: client,
		key:    "directory:snapshot",
		ttl:    ttl,
	}
}

// Save stores employees together with the time they were fetched.
func (s *DirectorySnapshotStore) Save(ctx context.Context, employees []*domain.Employee, fetchedAt time.Time) error {
	payload, err := json.Marshal(snapshotPayload{Employees: employees, FetchedAt: fetchedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode directory snapshot: %w", err)
	}
	return s.client.Set(ctx, s.key, payload, s.ttl).Err()
}

// Load returns the stored snapshot.
func (s *DirectorySnapshotStore) Load(ctx context.Context) ([]*domain.Employee, time.Time, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, time.Time{}, ErrNoSnapshot
		}
		return nil, time.Time{}, err
	}

	var payload snapshotPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, time.Time{}, fmt.Errorf("decode directory snapshot: %w", err)
	}
	return payload.Employees, payload.FetchedAt, nil
}
