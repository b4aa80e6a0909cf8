package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maternal-risk/platform/pkg/common/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already taken")
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, input CreateUserInput) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, string, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error)
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

type UserModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username     string    `gorm:"uniqueIndex;size:100"`
	NamaLengkap  string    `gorm:"size:255"`
	Profesi      string    `gorm:"size:100"`
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&UserModel{})
}

type CreateUserInput struct {
	Username     string
	NamaLengkap  string
	Profesi      string
	PasswordHash string
}

func (r *Repository) CreateUser(ctx context.Context, input CreateUserInput) (models.User, error) {
	username := strings.TrimSpace(input.Username)

	var existing int64
	if err := r.db.WithContext(ctx).Model(&UserModel{}).Where("username = ?", username).Count(&existing).Error; err != nil {
		return models.User{}, err
	}
	if existing > 0 {
		return models.User{}, ErrUserExists
	}

	user := UserModel{
		ID:           uuid.New(),
		Username:     username,
		NamaLengkap:  input.NamaLengkap,
		Profesi:      input.Profesi,
		PasswordHash: input.PasswordHash,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return models.User{}, ErrUserExists
		}
		return models.User{}, err
	}

	return mapUserModel(user), nil
}

// GetUserByUsername returns the account and its password hash.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (models.User, string, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, "", ErrUserNotFound
	}
	if err != nil {
		return models.User{}, "", err
	}
	return mapUserModel(user), user.PasswordHash, nil
}

func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	var user UserModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return mapUserModel(user), nil
}

func mapUserModel(user UserModel) models.User {
	return models.User{
		ID:          user.ID,
		Username:    user.Username,
		NamaLengkap: user.NamaLengkap,
		Profesi:     user.Profesi,
		CreatedAt:   user.CreatedAt,
	}
}
