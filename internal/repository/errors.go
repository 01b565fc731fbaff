package repository

import "errors"

var (
	// ErrNotFound 目标记录（clip / user / conversation）不存在
	ErrNotFound = errors.New("record not found")
	// ErrNotParticipant 用户不是会话成员
	ErrNotParticipant = errors.New("user is not a conversation participant")
)
