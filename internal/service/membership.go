package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

// Kind 成员关系类型
type Kind string

const (
	KindLike   Kind = "like"
	KindSave   Kind = "save"
	KindFollow Kind = "follow"
)

// Intent 切换方向
type Intent int

const (
	IntentAdd Intent = iota + 1
	IntentRemove
)

var memberships = map[Kind]repository.Membership{
	KindLike:   repository.Likes,
	KindSave:   repository.Saves,
	KindFollow: repository.Follows,
}

// MembershipService 点赞 / 收藏 / 关注的原子切换
type MembershipService interface {
	// Toggle entityID 对 follow 而言是被关注者
	Toggle(ctx context.Context, kind Kind, entityID, userID string, intent Intent) (bool, error)
	IsMember(ctx context.Context, kind Kind, entityID, userID string) (bool, error)
}

type membershipService struct {
	repo     repository.MembershipRepository
	clips    repository.ClipRepository
	notifier *Notifier
	clock    Clock
}

func NewMembershipService(repo repository.MembershipRepository, clips repository.ClipRepository, notifier *Notifier, clock Clock) MembershipService {
	return &membershipService{repo: repo, clips: clips, notifier: notifier, clock: clockOrDefault(clock)}
}

func (s *membershipService) Toggle(ctx context.Context, kind Kind, entityID, userID string, intent Intent) (bool, error) {
	m, err := s.lookup(kind, entityID, userID)
	if err != nil {
		return false, err
	}
	if kind == KindFollow && entityID == userID {
		return false, ErrFollowSelf
	}

	var changed bool
	switch intent {
	case IntentAdd:
		changed, err = s.repo.Add(ctx, m, entityID, userID, s.clock())
	case IntentRemove:
		changed, err = s.repo.Remove(ctx, m, entityID, userID)
	default:
		return false, fmt.Errorf("%w: unknown intent", ErrInvalidArgument)
	}
	if err != nil {
		metrics.Toggles.WithLabelValues(string(kind), "error").Inc()
		return false, fmt.Errorf("%s toggle: %w", kind, err)
	}
	if !changed {
		metrics.Toggles.WithLabelValues(string(kind), "noop").Inc()
		return false, nil
	}
	metrics.Toggles.WithLabelValues(string(kind), "changed").Inc()

	if intent == IntentAdd {
		s.notify(ctx, kind, entityID, userID)
	}
	return true, nil
}

func (s *membershipService) IsMember(ctx context.Context, kind Kind, entityID, userID string) (bool, error) {
	m, err := s.lookup(kind, entityID, userID)
	if err != nil {
		return false, err
	}
	return s.repo.Exists(ctx, m, entityID, userID)
}

func (s *membershipService) lookup(kind Kind, entityID, userID string) (repository.Membership, error) {
	m, ok := memberships[kind]
	if !ok {
		return repository.Membership{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidArgument, kind)
	}
	if entityID == "" || userID == "" {
		return repository.Membership{}, fmt.Errorf("%w: entity and user ids are required", ErrInvalidArgument)
	}
	return m, nil
}

// notify 已提交之后执行，失败只记日志
func (s *membershipService) notify(ctx context.Context, kind Kind, entityID, userID string) {
	if s.notifier == nil {
		return
	}
	switch kind {
	case KindLike:
		clip, err := s.clips.Get(ctx, entityID)
		if err != nil {
			logger.Warn("resolve clip owner for notification", zap.String("clip", entityID), zap.Error(err))
			return
		}
		if clip.OwnerID == userID {
			return
		}
		clipID := entityID
		s.notifier.Enqueue(NotificationEvent{Type: model.NotificationLike, ToUID: clip.OwnerID, FromUID: userID, PostID: &clipID})
	case KindFollow:
		s.notifier.Enqueue(NotificationEvent{Type: model.NotificationFollow, ToUID: entityID, FromUID: userID})
	}
}
