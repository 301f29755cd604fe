package auth_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	auth "github.com/goliatone/go-storefront-auth"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) GetByProvider(ctx context.Context, provider, providerUserID string) (*auth.User, error) {
	args := m.Called(ctx, provider, providerUserID)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	args := m.Called(ctx, user)
	created, _ := args.Get(0).(*auth.User)
	return created, args.Error(1)
}

func (m *MockUsers) UpdateRole(ctx context.Context, id string, role auth.Role) (*auth.User, error) {
	args := m.Called(ctx, id, role)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// memoryUsers is an in-memory auth.Users keyed by id
type memoryUsers struct {
	mu    sync.Mutex
	seq   int
	users map[string]*auth.User
}

func newMemoryUsers(users ...*auth.User) *memoryUsers {
	m := &memoryUsers{users: map[string]*auth.User{}}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *memoryUsers) GetByID(_ context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, auth.ErrNotFound
}

func (m *memoryUsers) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memoryUsers) GetByProvider(_ context.Context, provider, providerUserID string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if link, ok := u.ProviderLink(); ok && link.Provider == provider && link.ProviderUserID == providerUserID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *memoryUsers) Create(_ context.Context, user *auth.User) (*auth.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return nil, auth.ErrEmailTaken
		}
	}

	cp := *user
	if cp.ID == "" {
		m.seq++
		cp.ID = fmt.Sprintf("user-%d", m.seq)
	}
	m.users[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *memoryUsers) UpdateRole(_ context.Context, id string, role auth.Role) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

// recordingSink keeps every recorded event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.EventType
	}
	return out
}

func (s *recordingSink) Last() auth.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return auth.ActivityEvent{}
	}
	return s.events[len(s.events)-1]
}

// nopLogger silences the package logger in tests
type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type testIdentityValue struct {
	id, email, name string
	role            auth.Role
}

func (i testIdentityValue) ID() string          { return i.id }
func (i testIdentityValue) Email() string       { return i.email }
func (i testIdentityValue) DisplayName() string { return i.name }
func (i testIdentityValue) Role() auth.Role     { return i.role }

func testIdentity(id, email string, role auth.Role) auth.Identity {
	return testIdentityValue{id: id, email: email, name: email, role: role}
}

func localUser(t interface{ Helper() }, id, email, password string, role auth.Role) *auth.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return &auth.User{
		ID:          id,
		Email:       email,
		DisplayName: email,
		Role:        role,
		Credential:  auth.LocalCredential{Hash: hash},
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}
