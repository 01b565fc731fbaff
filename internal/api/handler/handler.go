package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/response"
)

// Handler HTTP 入口，业务全部委托给 service
type Handler struct {
	members service.MembershipService
	convs   service.ConversationService
	reads   service.ReadReceiptService
	job     service.Triggerer
}

func New(members service.MembershipService, convs service.ConversationService, reads service.ReadReceiptService, job service.Triggerer) *Handler {
	return &Handler{members: members, convs: convs, reads: reads, job: job}
}

// fail 按错误类型映射 HTTP 状态
func fail(c *gin.Context, err error) {
	switch {
	case service.IsInvalid(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrNotParticipant):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrJobRunning):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"})
}
