package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/classlink/go-classchat/internal/config"
	"github.com/classlink/go-classchat/internal/database"
	"github.com/classlink/go-classchat/internal/server"
	"github.com/classlink/go-classchat/internal/stats"
	"github.com/classlink/go-classchat/internal/testutil"
	"github.com/classlink/go-classchat/internal/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNewClassChatApp(t *testing.T) {
	cfg, err := config.NewConfig("localhost:8000", "dsn", "dGVzdC1zaWduaW5nLWtleQ==",
		[]string{"http://localhost:3000"})
	assert.NoError(t, err, "expected no error creating config")

	db := &database.MockClassChatRepository{}
	logger := testutil.TestLogger(t)

	s := NewClassChatApp(http.NewServeMux(), logger, nil, db, cfg)
	assert.NotNil(t, s, "expected app to be created")
	assert.Equal(t, logger, s.log, "expected logger to be set")
	assert.Equal(t, db, s.db, "expected database repository to be set")
	assert.Equal(t, []byte("test-signing-key"), s.signingKey, "expected decoded signing key")
	assert.Equal(t, []string{"http://localhost:3000"}, s.allowedOrigins, "expected allowed origins to be set")
	assert.NotNil(t, s.generateShortId, "expected short id generator to be set")
	assert.Equal(t, "localhost:8000", s.mux.Addr, "expected server address to be set")
}

// TestWebsocketSession exercises the full path from HTTP upgrade through the
// relay event loop: authenticate with a session cookie, upgrade, register,
// and receive the online set back.
func TestWebsocketSession(t *testing.T) {
	db := &database.MockClassChatRepository{}
	defer db.AssertExpectations(t)
	db.On("GetAccountById", 1).Return(database.User{
		Id:           1,
		Name:         "alice",
		EmailAddress: "alice@school.edu",
		Role:         database.RoleTeacher,
	}, nil).Once()

	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Times(5)
	su.On("Incr", mock.Anything).Maybe()
	su.On("Decr", mock.Anything).Maybe()

	logger := testutil.TestLogger(t)
	cs, err := server.NewChatServer(logger, db, su)
	assert.NoError(t, err, "expected no error creating chat server")

	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := cs.Shutdown(ctx); err != nil {
			t.Errorf("failed to shut down chat server: %v", err)
		}
	})

	s := newTestAppWithDb(t, db)
	s.cs = cs

	srv := httptest.NewServer(s.authMiddleware(s.serveWs))
	defer srv.Close()

	token, err := s.createJwtForSession(types.User{Id: 1}, defaultJwtExpiration)
	assert.NoError(t, err, "expected no error creating token")

	header := http.Header{}
	header.Set("Cookie", tokenCookieKey+"="+token)

	wsUrl := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsUrl, header)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	err = conn.WriteJSON(map[string]any{"id": 1, "register": map[string]any{}})
	assert.NoError(t, err, "expected no error sending register")

	var reply struct {
		Id       int `json:"id"`
		Response *struct {
			ResponseCode int `json:"response_code"`
			Data         struct {
				Users []int `json:"users"`
			} `json:"data"`
		} `json:"response"`
	}
	err = conn.ReadJSON(&reply)
	assert.NoError(t, err, "expected no error reading register response")
	assert.Equal(t, 1, reply.Id, "expected response id to match register id")
	if assert.NotNil(t, reply.Response, "expected register response") {
		assert.Equal(t, http.StatusOK, reply.Response.ResponseCode, "expected register to succeed")
		assert.Equal(t, []int{1}, reply.Response.Data.Users, "expected caller in online set")
	}
}

func TestWebsocketRejectsDisallowedOrigin(t *testing.T) {
	db := &database.MockClassChatRepository{}
	db.On("GetAccountById", 1).Return(database.User{Id: 1, Name: "alice"}, nil).Once()

	s := newTestAppWithDb(t, db)
	s.allowedOrigins = []string{"http://localhost:3000"}

	srv := httptest.NewServer(s.authMiddleware(s.serveWs))
	defer srv.Close()

	token, err := s.createJwtForSession(types.User{Id: 1}, defaultJwtExpiration)
	assert.NoError(t, err, "expected no error creating token")

	header := http.Header{}
	header.Set("Cookie", tokenCookieKey+"="+token)
	header.Set("Origin", "http://evil.example.com")

	wsUrl := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsUrl, header)
	if conn != nil {
		conn.Close()
	}
	if resp != nil {
		defer resp.Body.Close()
	}
	assert.Error(t, err, "expected dial from disallowed origin to fail")
	if assert.NotNil(t, resp, "expected handshake response") {
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, "expected upgrade to be refused")
	}
}
