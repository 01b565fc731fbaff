package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/pkg/logger"
	"github.com/d60-Lab/engagement/pkg/metrics"
)

// ReadItem 客户端提交的一条已读回执
type ReadItem struct {
	ConversationID string `json:"conversationId" binding:"required"`
	MessageID      string `json:"messageId" binding:"required"`
	SenderID       string `json:"senderId" binding:"required"`
}

type ReadReceiptService interface {
	// MarkRead 返回实际翻转为已读的消息数
	MarkRead(ctx context.Context, readerID string, items []ReadItem) (int, error)
}

type readReceiptService struct {
	msgs           repository.MessageRepository
	maxBatchWrites int
	clock          Clock
}

func NewReadReceiptService(msgs repository.MessageRepository, maxBatchWrites int, clock Clock) ReadReceiptService {
	if maxBatchWrites < 3 {
		maxBatchWrites = 500
	}
	return &readReceiptService{msgs: msgs, maxBatchWrites: maxBatchWrites, clock: clockOrDefault(clock)}
}

func (s *readReceiptService) MarkRead(ctx context.Context, readerID string, items []ReadItem) (int, error) {
	if readerID == "" {
		return 0, fmt.Errorf("%w: reader is required", ErrInvalidArgument)
	}
	filtered := make([]repository.ReadItem, 0, len(items))
	seen := make(map[repository.ReadItem]struct{}, len(items))
	for _, it := range items {
		if it.ConversationID == "" || it.MessageID == "" {
			return 0, fmt.Errorf("%w: conversationId and messageId are required", ErrInvalidArgument)
		}
		// 自己发的消息不计入未读
		if it.SenderID == readerID {
			continue
		}
		ri := repository.ReadItem{ConversationID: it.ConversationID, MessageID: it.MessageID}
		if _, dup := seen[ri]; dup {
			continue
		}
		seen[ri] = struct{}{}
		filtered = append(filtered, ri)
	}

	total := 0
	chunks := chunkReadItems(filtered, s.maxBatchWrites)
	for i, chunk := range chunks {
		n, err := s.msgs.MarkRead(ctx, readerID, chunk, s.clock())
		if err != nil {
			// 之前的批次已提交，各自一致
			logger.Warn("mark read chunk failed",
				zap.String("reader", readerID),
				zap.Int("chunk", i),
				zap.Int("chunks", len(chunks)),
				zap.Int("flipped", total),
				zap.Error(err),
			)
			return total, fmt.Errorf("mark read chunk %d/%d: %w", i+1, len(chunks), err)
		}
		total += n
		metrics.MessagesRead.Add(float64(n))
	}
	return total, nil
}

// 每条消息两次写入：回执 + is_read
const writesPerMessage = 2

// chunkReadItems 每批写入数 = 2 * 消息数 + 涉及的会话数，不超过 limit
func chunkReadItems(items []repository.ReadItem, limit int) [][]repository.ReadItem {
	var (
		chunks [][]repository.ReadItem
		cur    []repository.ReadItem
		convs  = map[string]struct{}{}
	)
	for _, it := range items {
		cost := writesPerMessage
		if _, ok := convs[it.ConversationID]; !ok {
			cost++
		}
		if len(cur) > 0 && writesPerMessage*len(cur)+len(convs)+cost > limit {
			chunks = append(chunks, cur)
			cur = nil
			convs = map[string]struct{}{}
		}
		cur = append(cur, it)
		convs[it.ConversationID] = struct{}{}
	}
	if len(cur) > 0 {
		chunks = append(chunks, cur)
	}
	return chunks
}
