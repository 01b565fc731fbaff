package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement/pkg/response"
)

// RunPopularity 手动触发一次热度聚合；拿到运行锁即返回 202，扫描在后台完成
// @Summary 触发热度聚合任务
// @Tags 运维
// @Produce json
// @Security BearerAuth
// @Success 202 {object} map[string]interface{}
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /admin/popularity/run [post]
func (h *Handler) RunPopularity(c *gin.Context) {
	if _, err := h.job.Trigger(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"status": "started"})
}
