package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
)

// 两人会话 id = UUIDv5(namespace, peer_key)
var conversationNamespace = uuid.MustParse("6f1c2a3e-8d4b-4c1f-9a57-2e0b7d9c4f10")

const peerKeySep = ":"

// PeerKey 排序后的两人 uid 拼接，顺序无关
func PeerKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + peerKeySep + b
}

// ConversationID 两人会话的确定性 id
func ConversationID(peerKey string) string {
	return uuid.NewSHA1(conversationNamespace, []byte(peerKey)).String()
}

type ConversationService interface {
	// GetOrCreate 两人会话去重复用，群聊总是新建
	GetOrCreate(ctx context.Context, participants []string) (string, bool, error)
	// Send 原子扇出：消息、会话摘要、发送者记录、其他成员未读数
	Send(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)
	Get(ctx context.Context, conversationID string) (*model.Conversation, error)
	// List 用户参与的会话，按最近活跃倒序，带各成员未读数
	List(ctx context.Context, userID string, limit int) ([]*model.Conversation, error)
}

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type conversationService struct {
	convs         repository.ConversationRepository
	msgs          repository.MessageRepository
	clock         Clock
	maxContentLen int
}

func NewConversationService(convs repository.ConversationRepository, msgs repository.MessageRepository, maxContentLen int, clock Clock) ConversationService {
	if maxContentLen <= 0 {
		maxContentLen = 4000
	}
	return &conversationService{convs: convs, msgs: msgs, clock: clockOrDefault(clock), maxContentLen: maxContentLen}
}

func (s *conversationService) GetOrCreate(ctx context.Context, participants []string) (string, bool, error) {
	members, err := NormalizeParticipants(participants)
	if err != nil {
		return "", false, err
	}
	now := s.clock()

	if len(members) > 2 {
		conv := &model.Conversation{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
		if _, err := s.convs.Create(ctx, conv, members, now); err != nil {
			return "", false, fmt.Errorf("create group conversation: %w", err)
		}
		return conv.ID, false, nil
	}

	key := PeerKey(members[0], members[1])
	if id, ok, err := s.findPair(ctx, key, members[0], members[1]); err != nil || ok {
		return id, ok, err
	}

	conv := &model.Conversation{ID: ConversationID(key), PeerKey: &key, CreatedAt: now, UpdatedAt: now}
	created, err := s.convs.Create(ctx, conv, members, now)
	if err != nil {
		return "", false, fmt.Errorf("create conversation: %w", err)
	}
	if created {
		return conv.ID, false, nil
	}
	// 并发创建者先提交
	winner, err := s.convs.FindByPeerKey(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("load concurrent conversation: %w", err)
	}
	return winner.ID, true, nil
}

func (s *conversationService) findPair(ctx context.Context, key, a, b string) (string, bool, error) {
	conv, err := s.convs.FindByPeerKey(ctx, key)
	if err == nil {
		return conv.ID, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, fmt.Errorf("find conversation: %w", err)
	}
	conv, err = s.convs.FindTwoParty(ctx, a, b)
	if err == nil {
		return conv.ID, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", false, fmt.Errorf("find legacy conversation: %w", err)
	}
	return "", false, nil
}

// NormalizeParticipants 去空白、去重、排序；少于两人或 id 含分隔符时报错
func NormalizeParticipants(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.Contains(id, peerKeySep) {
			return nil, fmt.Errorf("%w: participant id %q contains %q", ErrInvalidArgument, id, peerKeySep)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) < 2 {
		return nil, ErrInvalidParticipants
	}
	sort.Strings(out)
	return out, nil
}

func (s *conversationService) Send(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if conversationID == "" || senderID == "" {
		return nil, fmt.Errorf("%w: conversationId and senderId are required", ErrInvalidArgument)
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content is empty", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > s.maxContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, s.maxContentLen)
	}
	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      s.clock(),
	}
	if err := s.msgs.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return msg, nil
}

func (s *conversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	return s.convs.Get(ctx, conversationID)
}

func (s *conversationService) List(ctx context.Context, userID string, limit int) ([]*model.Conversation, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.convs.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations of %s: %w", userID, err)
	}
	return list, nil
}
