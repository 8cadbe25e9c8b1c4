package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"channelfeed/backend/internal/constants"
	"channelfeed/backend/internal/social"
	"channelfeed/backend/internal/store/memory"
	apperrors "channelfeed/backend/pkg/errors"
)

type testServer struct {
	router *gin.Engine
	svc    *social.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := social.NewService(memory.New(), social.Options{Logger: zap.NewNop()})
	router := gin.New()
	NewHandler(svc, time.Second, zap.NewNop()).Register(router)
	return &testServer{router: router, svc: svc}
}

func (s *testServer) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(constants.ActorHeader, actor)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) user(t *testing.T, name string) string {
	t.Helper()
	u, err := s.svc.CreateUser(context.Background(), name)
	require.NoError(t, err)
	return u.ID
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type created struct {
	Message string `json:"message"`
	Channel struct {
		ID string `json:"_id"`
	} `json:"channel"`
	Freet struct {
		ID string `json:"_id"`
	} `json:"freet"`
	Follow struct {
		ID string `json:"_id"`
	} `json:"follow"`
}

func TestChannelLifecycle(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	w := s.do("POST", "/api/channels", alice, gin.H{"title": "news", "description": "daily"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ch := decode[created](t, w)
	assert.Equal(t, "Your Channel was created successfully.", ch.Message)

	w = s.do("PUT", "/api/channels/"+ch.Channel.ID, bob, gin.H{"title": "mine"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode[map[string]map[string]string](t, w)
	assert.Equal(t, "Cannot modify other users' Channels.", body["error"]["channel"])

	w = s.do("GET", "/api/channels?author=alice", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]map[string]any](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0]["author"])

	w = s.do("GET", "/api/channels?author=nobody", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("DELETE", "/api/channels/"+ch.Channel.ID, alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do("DELETE", "/api/channels/"+ch.Channel.ID, alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	body = decode[map[string]map[string]string](t, w)
	assert.Contains(t, body["error"], "channelNotFound")
}

func TestChannelTitleValidation(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")

	w := s.do("POST", "/api/channels", alice, gin.H{"title": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[map[string]map[string]string](t, w)
	assert.Equal(t, "Channel title must be at least one character long.", body["error"]["Channel title"])

	w = s.do("POST", "/api/channels", alice, gin.H{"title": strings.Repeat("t", 141)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = s.do("POST", "/api/channels", "", gin.H{"title": "news"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestFollowEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	w := s.do("POST", "/api/channels", alice, gin.H{"title": "news"})
	require.Equal(t, http.StatusCreated, w.Code)
	channelID := decode[created](t, w).Channel.ID

	w = s.do("POST", "/api/follows", bob, gin.H{"channelId": channelID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("POST", "/api/follows", bob, gin.H{"channelId": channelID})
	assert.Equal(t, http.StatusForbidden, w.Code)
	body := decode[map[string]map[string]string](t, w)
	assert.Equal(t, "Already following this channel.", body["error"]["follow"])

	w = s.do("POST", "/api/follows", alice, gin.H{"channelId": channelID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do("POST", "/api/follows", bob, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/api/follows?channelId="+channelID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)
}

func TestFeedsEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	for _, content := range []string{"first", "second"} {
		w := s.do("POST", "/api/freets", alice, gin.H{"content": content})
		require.Equal(t, http.StatusCreated, w.Code)
		time.Sleep(2 * time.Millisecond)
	}
	w := s.do("POST", "/api/subscribes", bob, gin.H{"subscribingTo": "alice"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("GET", "/api/freets/subscribed", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed := decode[[]map[string]any](t, w)
	require.Len(t, feed, 2)
	assert.Equal(t, "second", feed[0]["content"])

	w = s.do("GET", "/api/freets/subscribed?order=oldest", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	feed = decode[[]map[string]any](t, w)
	assert.Equal(t, "first", feed[0]["content"])

	w = s.do("GET", "/api/freets/subscribed?order=sideways", bob, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do("GET", "/api/freets/subscribed", "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do("GET", "/api/connections/followed", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestConnectionEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.user(t, "alice")
	bob := s.user(t, "bob")

	w := s.do("POST", "/api/channels", alice, gin.H{"title": "news"})
	channelID := decode[created](t, w).Channel.ID
	w = s.do("POST", "/api/freets", alice, gin.H{"content": "hi"})
	freetID := decode[created](t, w).Freet.ID

	w = s.do("POST", "/api/connections", bob, gin.H{"channelId": channelID, "freetId": freetID})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do("POST", "/api/connections", alice, gin.H{"channelId": channelID, "freetId": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do("POST", "/api/connections", alice, gin.H{"channelId": channelID, "freetId": freetID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do("DELETE", "/api/freets/"+freetID, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do("GET", "/api/connections?channelId="+channelID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperrors.NewNotFound("channel", "x"), http.StatusNotFound},
		{apperrors.NewValidation("title", "empty"), http.StatusBadRequest},
		{apperrors.NewTooLong("title", 140), http.StatusRequestEntityTooLarge},
		{apperrors.NewNotAuthorized("a", "channel", "no"), http.StatusForbidden},
		{apperrors.NewDuplicate("follow", "k", "dup"), http.StatusForbidden},
		{apperrors.NewStoreFailed("get", context.DeadlineExceeded), http.StatusServiceUnavailable},
		{assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusOf(tt.err), tt.err.Error())
	}
}

func TestRetryAfterOnTimeout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/slow", func(c *gin.Context) {
		writeError(c, apperrors.NewStoreFailed("get", context.DeadlineExceeded))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/slow", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}
