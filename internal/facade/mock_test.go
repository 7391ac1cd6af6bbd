package facade

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/suanfamama/atelier/internal/backend"
	"github.com/suanfamama/atelier/internal/domain"
)

// mockBackend is an in-memory backend.Client. Errors set per operation are
// returned instead of touching state.
type mockBackend struct {
	mu sync.Mutex

	calls   []string
	queries []backend.Query
	users   []domain.User
	tables  map[string]any
	counts  map[string]int
	upserts []any

	signUpErr  error
	signInErr  error
	signOutErr error
	selectErr  error
	countErr   error
	upsertErr  error
	resetErr   error
	forgotErr  error

	lastRedirect string
}

var _ backend.Client = (*mockBackend)(nil)

func newMockBackend() *mockBackend {
	return &mockBackend{
		tables: make(map[string]any),
		counts: make(map[string]int),
	}
}

func (m *mockBackend) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

func (m *mockBackend) called() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockBackend) SignUp(_ context.Context, email, _ string, meta backend.SignUpMetadata) (*backend.Session, error) {
	m.record("SignUp")
	if m.signUpErr != nil {
		return nil, m.signUpErr
	}
	u := &domain.User{ID: "u-1", Email: email, Role: meta.Role}
	return &backend.Session{AccessToken: "token-1", User: u}, nil
}

func (m *mockBackend) SignIn(_ context.Context, email, _ string) (*backend.Session, error) {
	m.record("SignIn")
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	return &backend.Session{AccessToken: "token-2", User: &domain.User{ID: "u-1", Email: email, Role: domain.RoleBuyer}}, nil
}

func (m *mockBackend) SignOut(context.Context, string) error {
	m.record("SignOut")
	return m.signOutErr
}

func (m *mockBackend) CurrentUser(_ context.Context, token string) (*domain.User, error) {
	m.record("CurrentUser")
	if token != "token-1" {
		return nil, backend.ErrInvalidToken
	}
	return &domain.User{ID: "u-1", Email: "a@b.co", Role: domain.RoleDesigner}, nil
}

func (m *mockBackend) RequestPasswordReset(_ context.Context, _, redirectURL string) error {
	m.record("RequestPasswordReset")
	m.mu.Lock()
	m.lastRedirect = redirectURL
	m.mu.Unlock()
	return m.forgotErr
}

func (m *mockBackend) ResetPassword(context.Context, string, string) error {
	m.record("ResetPassword")
	return m.resetErr
}

func (m *mockBackend) Select(_ context.Context, q backend.Query, dest any) error {
	m.record("Select:" + q.Table)
	if m.selectErr != nil {
		return m.selectErr
	}

	m.mu.Lock()
	m.queries = append(m.queries, q)
	rows, ok := m.tables[q.Table]
	m.mu.Unlock()
	if !ok {
		rows = []any{}
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (m *mockBackend) Count(_ context.Context, q backend.Query) (int, error) {
	m.record("Count:" + q.Table)
	if m.countErr != nil {
		return 0, m.countErr
	}
	key := q.Table
	for _, f := range q.Filters {
		key += ":" + f.Column
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func (m *mockBackend) Upsert(_ context.Context, table string, row any) error {
	m.record("Upsert:" + table)
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.mu.Lock()
	m.upserts = append(m.upserts, row)
	m.mu.Unlock()
	return nil
}

var errBackendDown = errors.New("backend unavailable")
