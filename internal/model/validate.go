package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// ErrInvalid 记录未通过 schema 校验
var ErrInvalid = errors.New("invalid record")

var validate = validator.New()

// Validate 在写入存储前校验结构体的 validate 标签
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Clip{},
		&Like{},
		&SavedClip{},
		&Follow{},
		&Conversation{},
		&ConversationParticipant{},
		&Message{},
		&MessageRead{},
		&Notification{},
	)
}
