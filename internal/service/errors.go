package service

import (
	"errors"
	"time"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
)

var (
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInvalidParticipants = errors.New("at least two distinct participants are required")
	ErrFollowSelf          = errors.New("cannot follow self")
	ErrJobRunning          = errors.New("popularity job already running")

	ErrNotFound       = repository.ErrNotFound
	ErrNotParticipant = repository.ErrNotParticipant
)

// IsInvalid 调用方输入问题，映射为 400
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidParticipants) ||
		errors.Is(err, ErrFollowSelf) ||
		errors.Is(err, model.ErrInvalid)
}

// Clock 所有写入的唯一时间来源
type Clock func() time.Time

// SystemClock UTC 当前时间
func SystemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
