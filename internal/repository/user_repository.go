package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/engagement/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	Get(ctx context.Context, id string) (*model.User, error)
}

type userRepository struct {
	tx *TxRunner
}

func NewUserRepository(tx *TxRunner) UserRepository { return &userRepository{tx: tx} }

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	if err := model.Validate(u); err != nil {
		return err
	}
	return r.tx.DB(ctx).Create(u).Error
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.tx.DB(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
