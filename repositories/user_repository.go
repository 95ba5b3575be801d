package repositories

import (
	"context"
	"strings"

	"itsm-knowledge-base/models"
	"itsm-knowledge-base/storage"
)

const usersCollection = "users"

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
}

type userRepository struct {
	users *storage.Collection[models.User]
}

func NewUserRepository(backend storage.Backend) UserRepository {
	return &userRepository{users: storage.NewCollection[models.User](backend, usersCollection)}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	return r.users.Insert(ctx, user.ID, *user)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findFirst(ctx, func(u models.User) bool {
		return strings.EqualFold(u.Email, email)
	})
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findFirst(ctx, func(u models.User) bool {
		return strings.EqualFold(u.Username, username)
	})
}

func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	return r.users.Put(ctx, user.ID, *user)
}

func (r *userRepository) findFirst(ctx context.Context, match func(models.User) bool) (*models.User, error) {
	all, err := r.users.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if match(all[i]) {
			return &all[i], nil
		}
	}
	return nil, storage.ErrNotFound
}
