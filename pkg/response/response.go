package response

import (
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/engagement/pkg/logger"
)

// Response 统一响应结构（swagger 文档用）
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ErrorBody 错误响应 {error: string}
type ErrorBody struct {
	Error string `json:"error"`
}

// Success 200 {success:true, ...data}
func Success(c *gin.Context, data gin.H) {
	body := gin.H{"success": true}
	for k, v := range data {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// JSON 原样输出
func JSON(c *gin.Context, status int, body any) { c.JSON(status, body) }

func BadRequest(c *gin.Context, msg string) { abort(c, http.StatusBadRequest, msg) }

func Unauthorized(c *gin.Context, msg string) { abort(c, http.StatusUnauthorized, msg) }

func Forbidden(c *gin.Context, msg string) { abort(c, http.StatusForbidden, msg) }

func NotFound(c *gin.Context, msg string) { abort(c, http.StatusNotFound, msg) }

func Conflict(c *gin.Context, msg string) { abort(c, http.StatusConflict, msg) }

// InternalError 500，带底层错误信息并上报 sentry
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	if hub := sentry.CurrentHub(); hub.Client() != nil {
		hub.CaptureException(err)
	}
	abort(c, http.StatusInternalServerError, err.Error())
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: msg})
}
