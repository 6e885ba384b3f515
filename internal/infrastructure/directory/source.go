package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/iho/leaveledger/internal/domain"
)

// Source fetches the full employee list from the identity service.
type Source interface {
	Fetch(ctx context.Context) ([]*domain.Employee, error)
}

// HTTPSource reads employees from GET {baseURL}/auth/users.
type HTTPSource struct {
	baseURL    string
	client     *http.Client
	maxRetries uint64
	interval   time.Duration
}

// NewHTTPSource creates a new HTTPSource. timeout bounds each attempt.
func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     &http.Client{Timeout: timeout},
		maxRetries: 3,
		interval:   200 * time.Millisecond,
	}
}

type usersResponse struct {
	Users []*domain.Employee `json:"users"`
}

// Fetch retries transport errors and 5xx responses with exponential backoff.
func (s *HTTPSource) Fetch(ctx context.Context) ([]*domain.Employee, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, s.maxRetries), ctx)

	var users []*domain.Employee
	err := backoff.Retry(func() error {
		var err error
		users, err = s.fetchOnce(ctx)
		return err
	}, policy)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context) ([]*domain.Employee, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/auth/users", nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("directory responded %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("directory responded %d", resp.StatusCode))
	}

	var body usersResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode directory response: %w", err))
	}

	users := make([]*domain.Employee, 0, len(body.Users))
	for _, u := range body.Users {
		if u == nil || u.ID == "" {
			continue
		}
		u.Role = normalizeRole(u.Role)
		users = append(users, u)
	}
	return users, nil
}

// normalizeRole maps the identity service's "employee" role onto staff.
func normalizeRole(r domain.Role) domain.Role {
	role := domain.Role(strings.ToLower(string(r)))
	if role == "employee" || !role.IsValid() {
		return domain.RoleStaff
	}
	return role
}
