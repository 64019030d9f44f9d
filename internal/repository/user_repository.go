package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/treeroute/treeroute/internal/models"
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
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by id %d: %w", id, err)
	}
	return &user, nil
}

// GetByIDForUpdate retrieves a user and locks the row until the surrounding
// transaction ends. SQLite ignores the lock; its writers are already serialized.
func (r *UserRepository) GetByIDForUpdate(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&user, id).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock user %d: %w", id, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user by username %s: %w", username, err)
	}
	return &user, nil
}

// UpdateProgress writes the XP, level and streak columns of a user.
func (r *UserRepository) UpdateProgress(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(user).
		Select("xp", "level", "current_streak", "longest_streak", "last_journey_date").
		Updates(user)
	if res.Error != nil {
		return fmt.Errorf("failed to update progress for user %d: %w", user.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update progress for user %d: no rows affected", user.ID)
	}
	return nil
}

// List retrieves all users ordered by ID.
func (r *UserRepository) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// RankedBy orders every user by a progress column. Ties are broken by ID so
// ranks are stable.
func (r *UserRepository) RankedBy(ctx context.Context, column string) ([]RankedRow, error) {
	if !rankableUserColumns[column] {
		return nil, fmt.Errorf("cannot rank users by %q", column)
	}

	var rows []RankedRow
	err := r.db.WithContext(ctx).
		Model(&models.User{}).
		Select("id AS user_id, username, level, " + column + " AS value").
		Order(column + " DESC, id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to rank users by %s: %w", column, err)
	}
	return rows, nil
}
