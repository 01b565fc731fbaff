package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/pkg/response"
)

type likeRequest struct {
	UserID string `json:"userId" binding:"required"`
	ClipID string `json:"clipId" binding:"required"`
	Action string `json:"action" binding:"required,oneof=like unlike"`
}

type saveRequest struct {
	UserID string `json:"userId" binding:"required"`
	ClipID string `json:"clipId" binding:"required"`
	Action string `json:"action" binding:"required,oneof=save unsave"`
}

type followRequest struct {
	FollowerID string `json:"followerId" binding:"required"`
	FolloweeID string `json:"followeeId" binding:"required"`
	Action     string `json:"action" binding:"required,oneof=follow unfollow"`
}

type toggleResponse struct {
	Success bool `json:"success"`
	Changed bool `json:"changed"`
}

type likeStatusResponse struct {
	IsLiked bool `json:"isLiked"`
}

// ToggleLike 点赞 / 取消点赞，likesCount 同事务维护
// @Summary 点赞或取消点赞
// @Tags 互动
// @Accept json
// @Produce json
// @Param request body likeRequest true "点赞信息"
// @Success 200 {object} toggleResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /likes [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	var req likeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	intent := service.IntentAdd
	if req.Action == "unlike" {
		intent = service.IntentRemove
	}
	h.toggle(c, service.KindLike, req.ClipID, req.UserID, intent)
}

// IsLiked 查询是否已点赞
// @Summary 是否已点赞
// @Tags 互动
// @Produce json
// @Param userId query string true "用户ID"
// @Param clipId query string true "视频ID"
// @Success 200 {object} likeStatusResponse
// @Failure 400 {object} response.ErrorBody
// @Router /likes [get]
func (h *Handler) IsLiked(c *gin.Context) {
	userID, clipID := c.Query("userId"), c.Query("clipId")
	if userID == "" || clipID == "" {
		response.BadRequest(c, "userId and clipId are required")
		return
	}
	liked, err := h.members.IsMember(c.Request.Context(), service.KindLike, clipID, userID)
	if err != nil {
		fail(c, err)
		return
	}
	response.JSON(c, http.StatusOK, likeStatusResponse{IsLiked: liked})
}

// ToggleSave 收藏 / 取消收藏
// @Summary 收藏或取消收藏
// @Tags 互动
// @Accept json
// @Produce json
// @Param request body saveRequest true "收藏信息"
// @Success 200 {object} toggleResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /savedClips [post]
func (h *Handler) ToggleSave(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	intent := service.IntentAdd
	if req.Action == "unsave" {
		intent = service.IntentRemove
	}
	h.toggle(c, service.KindSave, req.ClipID, req.UserID, intent)
}

// ToggleFollow 关注 / 取关，followersCount 同事务维护
// @Summary 关注或取消关注
// @Tags 关系链
// @Accept json
// @Produce json
// @Param request body followRequest true "关注信息"
// @Success 200 {object} toggleResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /follows [post]
func (h *Handler) ToggleFollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	intent := service.IntentAdd
	if req.Action == "unfollow" {
		intent = service.IntentRemove
	}
	h.toggle(c, service.KindFollow, req.FolloweeID, req.FollowerID, intent)
}

func (h *Handler) toggle(c *gin.Context, kind service.Kind, entityID, userID string, intent service.Intent) {
	changed, err := h.members.Toggle(c.Request.Context(), kind, entityID, userID, intent)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"changed": changed})
}
