package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement/internal/api/middleware"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/response"
)

type createConversationRequest struct {
	Participants []string `json:"participants" binding:"required,min=2"`
}

type createConversationResponse struct {
	Success        bool   `json:"success"`
	ConversationID string `json:"conversationId"`
	Existing       bool   `json:"existing"`
}

type listConversationsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type conversationView struct {
	ID            string           `json:"id"`
	LastMessageID *string          `json:"lastMessageId,omitempty"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	UnreadCount   int64            `json:"unreadCount"`
	UnreadCounts  map[string]int64 `json:"unreadCounts"`
}

type sendMessageRequest struct {
	ConversationID string `json:"conversationId" binding:"required"`
	SenderID       string `json:"senderId" binding:"required"`
	Content        string `json:"content" binding:"required"`
}

type sendMessageResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
}

type markReadResponse struct {
	Status  int `json:"status"`
	Updated int `json:"updated"`
}

// CreateConversation 两人会话复用，群聊新建
// @Summary 获取或创建会话
// @Tags 消息
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createConversationRequest true "成员列表"
// @Success 200 {object} createConversationResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /conversations [post]
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	members, err := service.NormalizeParticipants(req.Participants)
	if err != nil {
		fail(c, err)
		return
	}
	if !contains(members, middleware.UserID(c)) {
		response.Forbidden(c, "caller must be a participant")
		return
	}
	id, existing, err := h.convs.GetOrCreate(c.Request.Context(), members)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"conversationId": id, "existing": existing})
}

// ListConversations 当前用户的会话列表，最近活跃在前
// @Summary 我的会话
// @Tags 消息
// @Produce json
// @Security BearerAuth
// @Param limit query int false "条数，默认 20，最大 100"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /conversations [get]
func (h *Handler) ListConversations(c *gin.Context) {
	var q listConversationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	uid := middleware.UserID(c)
	list, err := h.convs.List(c.Request.Context(), uid, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]conversationView, 0, len(list))
	for _, conv := range list {
		out = append(out, viewOf(conv, uid))
	}
	response.Success(c, gin.H{"conversations": out})
}

// GetConversation 会话详情，仅成员可见
// @Summary 会话详情
// @Tags 消息
// @Produce json
// @Security BearerAuth
// @Param id path string true "会话 id"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /conversations/{id} [get]
func (h *Handler) GetConversation(c *gin.Context) {
	uid := middleware.UserID(c)
	conv, err := h.convs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if _, ok := conv.UnreadCounts()[uid]; !ok {
		response.Forbidden(c, service.ErrNotParticipant.Error())
		return
	}
	response.Success(c, gin.H{"conversation": viewOf(conv, uid)})
}

func viewOf(conv *model.Conversation, uid string) conversationView {
	counts := conv.UnreadCounts()
	return conversationView{
		ID:            conv.ID,
		LastMessageID: conv.LastMessageID,
		UpdatedAt:     conv.UpdatedAt,
		UnreadCount:   counts[uid],
		UnreadCounts:  counts,
	}
}

// SendMessage 发送消息并原子更新会话摘要与未读数
// @Summary 发送消息
// @Tags 消息
// @Accept json
// @Produce json
// @Param request body sendMessageRequest true "消息"
// @Success 200 {object} sendMessageResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /messages [post]
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	msg, err := h.convs.Send(c.Request.Context(), req.ConversationID, req.SenderID, req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"messageId": msg.ID})
}

// MarkRead 批量已读，未读数按实际翻转条数扣减
// @Summary 标记消息已读
// @Tags 消息
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body []service.ReadItem true "已读回执"
// @Success 200 {object} markReadResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /messages/read [post]
func (h *Handler) MarkRead(c *gin.Context) {
	var items []service.ReadItem
	if err := c.ShouldBindJSON(&items); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	n, err := h.reads.MarkRead(c.Request.Context(), middleware.UserID(c), items)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, markReadResponse{Status: http.StatusOK, Updated: n})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
