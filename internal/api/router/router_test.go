package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/engagement/config"
	"github.com/d60-Lab/engagement/internal/api/handler"
	"github.com/d60-Lab/engagement/internal/api/middleware"
	"github.com/d60-Lab/engagement/internal/model"
	"github.com/d60-Lab/engagement/internal/repository"
	"github.com/d60-Lab/engagement/internal/service"
	"github.com/d60-Lab/engagement/internal/testutil"
)

const testSecret = "test-secret"

type apiFixture struct {
	t      *testing.T
	server http.Handler
	clips  repository.ClipRepository
}

func newAPI(t *testing.T) *apiFixture {
	db := testutil.NewDB(t)
	tx := repository.NewTxRunner(db)
	users := repository.NewUserRepository(tx)
	for _, id := range []string{"owner", "u1", "u2", "u3"} {
		require.NoError(t, users.Create(context.Background(), &model.User{ID: id, Username: id}))
	}
	testutil.SeedClip(t, db, "c1", "owner")

	clips := repository.NewClipRepository(tx)
	msgs := repository.NewMessageRepository(tx)
	members := service.NewMembershipService(repository.NewMembershipRepository(tx), clips, nil, nil)
	convs := service.NewConversationService(repository.NewConversationRepository(tx), msgs, 200, nil)
	reads := service.NewReadReceiptService(msgs, 500, nil)
	job := service.NewPopularityJob(clips, nil, config.PopularityConfig{PageSize: 25, MinRefresh: time.Hour, Budget: time.Minute}, nil)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", AllowedOrigins: []string{"*"}},
		JWT:    config.JWTConfig{Secret: testSecret, Admins: []string{"ops"}},
	}
	h := handler.New(members, convs, reads, job)
	return &apiFixture{t: t, server: WithCORS(cfg.Server, New(cfg, h)), clips: clips}
}

func (f *apiFixture) do(method, path, uid string, body any) (int, map[string]any) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if uid != "" {
		token, err := middleware.SignToken(testSecret, "", uid, time.Hour)
		require.NoError(f.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.server.ServeHTTP(w, req)

	out := map[string]any{}
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func TestLikesEndpoints(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(http.MethodPost, "/likes", "", obj{"userId": "u1", "clipId": "c1", "action": "like"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["changed"])

	code, body = api.do(http.MethodPost, "/likes", "", obj{"userId": "u1", "clipId": "c1", "action": "like"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["changed"])

	code, body = api.do(http.MethodGet, "/likes?userId=u1&clipId=c1", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["isLiked"])

	code, body = api.do(http.MethodPost, "/likes", "", obj{"userId": "u1", "clipId": "c1", "action": "love"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.NotEmpty(t, body["error"])

	code, _ = api.do(http.MethodPost, "/likes", "", obj{"userId": "u1", "clipId": "ghost", "action": "like"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodGet, "/likes?userId=u1", "", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSaveAndFollowEndpoints(t *testing.T) {
	api := newAPI(t)

	code, body := api.do(http.MethodPost, "/savedClips", "", obj{"userId": "u1", "clipId": "c1", "action": "save"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])

	code, body = api.do(http.MethodPost, "/follows", "", obj{"followerId": "u1", "followeeId": "owner", "action": "follow"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["changed"])

	code, _ = api.do(http.MethodPost, "/follows", "", obj{"followerId": "u1", "followeeId": "u1", "action": "follow"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConversationFlow(t *testing.T) {
	api := newAPI(t)

	code, _ := api.do(http.MethodPost, "/conversations", "", obj{"participants": []string{"u1", "u2"}})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodPost, "/conversations", "u3", obj{"participants": []string{"u1", "u2"}})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, "/conversations", "u1", obj{"participants": []string{"u3", "u3 "}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := api.do(http.MethodPost, "/conversations", "u1", obj{"participants": []string{"u1", "u2"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["existing"])
	convID, _ := body["conversationId"].(string)
	require.NotEmpty(t, convID)

	// 成员列表里带空白的 uid 按去空白后的值比对
	code, body = api.do(http.MethodPost, "/conversations", "u2", obj{"participants": []string{" u2 ", "u1"}})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["existing"])
	assert.Equal(t, convID, body["conversationId"])

	code, body = api.do(http.MethodPost, "/messages", "", obj{"conversationId": convID, "senderId": "u1", "content": "hi"})
	require.Equal(t, http.StatusOK, code)
	msgID, _ := body["messageId"].(string)
	require.NotEmpty(t, msgID)

	code, _ = api.do(http.MethodPost, "/messages", "", obj{"conversationId": convID, "senderId": "u3", "content": "hi"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodPost, "/messages", "", obj{"conversationId": "nope", "senderId": "u1", "content": "hi"})
	assert.Equal(t, http.StatusNotFound, code)

	items := []obj{{"conversationId": convID, "messageId": msgID, "senderId": "u1"}}
	code, _ = api.do(http.MethodPost, "/messages/read", "", items)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = api.do(http.MethodPost, "/messages/read", "u2", items)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 200, body["status"])
	assert.EqualValues(t, 1, body["updated"])

	code, body = api.do(http.MethodPost, "/messages/read", "u2", items)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 0, body["updated"])

	code, _ = api.do(http.MethodPost, "/messages/read", "u2", []obj{{"conversationId": convID}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodGet, "/conversations", "u2", nil)
	require.Equal(t, http.StatusOK, code)
	list, ok := body["conversations"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	first := list[0].(map[string]any)
	assert.Equal(t, convID, first["id"])
	assert.Equal(t, msgID, first["lastMessageId"])
	assert.EqualValues(t, 0, first["unreadCount"])

	code, body = api.do(http.MethodGet, "/conversations", "u3", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["conversations"])

	code, _ = api.do(http.MethodGet, "/conversations?limit=500", "u2", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = api.do(http.MethodGet, "/conversations/"+convID, "u1", nil)
	require.Equal(t, http.StatusOK, code)
	detail := body["conversation"].(map[string]any)
	assert.Equal(t, map[string]any{"u1": float64(0), "u2": float64(0)}, detail["unreadCounts"])

	code, _ = api.do(http.MethodGet, "/conversations/"+convID, "u3", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = api.do(http.MethodGet, "/conversations/nope", "u1", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminAndOpsEndpoints(t *testing.T) {
	api := newAPI(t)

	code, _ := api.do(http.MethodPost, "/admin/popularity/run", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = api.do(http.MethodPost, "/admin/popularity/run", "owner", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body := api.do(http.MethodPost, "/admin/popularity/run", "ops", nil)
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "started", body["status"])
	require.Eventually(t, func() bool {
		c, err := api.clips.Get(context.Background(), "c1")
		return err == nil && c.LastPopularityUpdate != nil
	}, 5*time.Second, 20*time.Millisecond)

	code, body = api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])

	code, _ = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = api.do(http.MethodGet, "/swagger/doc.json", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

type obj = map[string]any
