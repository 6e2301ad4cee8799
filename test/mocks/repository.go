package mocks

import (
	"strings"
	"sync"

	"github.com/wikicontest/wikicontest/internal/apperr"
	"github.com/wikicontest/wikicontest/internal/models"
)

// MockUserRepository is an in-memory user repository.
// The *Func hooks override the stored behaviour when set.
type MockUserRepository struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint

	CreateFunc func(user *models.User) error
	UpdateFunc func(user *models.User) error
}

// NewMockUserRepository creates an empty repository.
func NewMockUserRepository(users ...*models.User) *MockUserRepository {
	m := &MockUserRepository{users: make(map[uint]*models.User), nextID: 1}
	for _, u := range users {
		_ = m.Create(u)
	}
	return m
}

func (m *MockUserRepository) Create(user *models.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return apperr.Conflict("user already exists")
		}
	}
	if user.ID == 0 {
		user.ID = m.nextID
	}
	if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	m.users[user.ID] = clone(user)
	return nil
}

func (m *MockUserRepository) GetByID(id uint) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.ID == id })
}

func (m *MockUserRepository) GetByUsername(username string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (m *MockUserRepository) GetByEmail(email string) (*models.User, error) {
	return m.find(func(u *models.User) bool {
		return u.Email != nil && strings.EqualFold(*u.Email, email)
	})
}

func (m *MockUserRepository) GetByOAuthID(oauthID string) (*models.User, error) {
	return m.find(func(u *models.User) bool { return u.OAuthID != nil && *u.OAuthID == oauthID })
}

func (m *MockUserRepository) ExistsByUsername(username string) (bool, error) {
	_, err := m.GetByUsername(username)
	return err == nil, nil
}

func (m *MockUserRepository) ExistsByEmail(email string) (bool, error) {
	_, err := m.GetByEmail(email)
	return err == nil, nil
}

func (m *MockUserRepository) Update(user *models.User) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; !ok {
		return apperr.NotFound("user not found")
	}
	m.users[user.ID] = clone(user)
	return nil
}

// Count returns the number of stored users.
func (m *MockUserRepository) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.users)
}

func (m *MockUserRepository) find(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}
