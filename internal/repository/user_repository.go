package repository

import (
	"github.com/wikicontest/wikicontest/internal/models"
)

// UserRepository handles user-related database operations.
type UserRepository struct {
	db *DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create creates a new user.
func (r *UserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return translate(err, "create", "user")
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

// GetByUsername retrieves a user by username, ignoring case.
func (r *UserRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("LOWER(username) = LOWER(?)", username).First(&user).Error; err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

// GetByEmail retrieves a user by email address, ignoring case.
func (r *UserRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("LOWER(email) = LOWER(?)", email).First(&user).Error; err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

// GetByOAuthID retrieves the user linked to a Wikimedia central user id.
func (r *UserRepository) GetByOAuthID(oauthID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("oauth_id = ?", oauthID).First(&user).Error; err != nil {
		return nil, translate(err, "get", "user")
	}
	return &user, nil
}

// ExistsByUsername reports whether the username is taken, ignoring case.
// Jury membership matches usernames case-insensitively.
func (r *UserRepository) ExistsByUsername(username string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("LOWER(username) = LOWER(?)", username).Count(&count).Error; err != nil {
		return false, translate(err, "count", "users")
	}
	return count > 0, nil
}

// ExistsByEmail reports whether the email address is taken, ignoring case.
func (r *UserRepository) ExistsByEmail(email string) (bool, error) {
	var count int64
	if err := r.db.Model(&models.User{}).Where("LOWER(email) = LOWER(?)", email).Count(&count).Error; err != nil {
		return false, translate(err, "count", "users")
	}
	return count > 0, nil
}

// Update updates a user.
func (r *UserRepository) Update(user *models.User) error {
	if err := r.db.Save(user).Error; err != nil {
		return translate(err, "update", "user")
	}
	return nil
}
