package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PopAlexandra2004/furryfriends/internal/auth"
	"github.com/PopAlexandra2004/furryfriends/internal/chat"
	"github.com/PopAlexandra2004/furryfriends/internal/directory"
	"github.com/PopAlexandra2004/furryfriends/internal/interest"
	"github.com/PopAlexandra2004/furryfriends/internal/playdate"
	"github.com/PopAlexandra2004/furryfriends/internal/session"
	"github.com/PopAlexandra2004/furryfriends/internal/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testHarness struct {
	handler http.Handler
	now     *time.Time
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&store.Document{}); err != nil {
		t.Fatalf("failed to migrate document schema: %v", err)
	}

	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	documentStore, err := store.NewStore(store.ServiceConfig{Database: db, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	directoryService, err := directory.NewService(directory.ServiceConfig{Store: documentStore, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create directory service: %v", err)
	}
	chatService, err := chat.NewService(chat.ServiceConfig{
		Store:      documentStore,
		Clock:      clock,
		IDProvider: chat.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create chat service: %v", err)
	}
	playdateService, err := playdate.NewService(playdate.ServiceConfig{Store: documentStore, Clock: clock})
	if err != nil {
		t.Fatalf("failed to create playdate service: %v", err)
	}
	interestService, err := interest.NewService(interest.ServiceConfig{
		Store:      documentStore,
		Chat:       chatService,
		IDProvider: chat.NewUUIDProvider(),
	})
	if err != nil {
		t.Fatalf("failed to create interest service: %v", err)
	}

	redisServer := miniredis.RunT(t)
	sessionStore := session.NewStoreWithClient(
		redis.NewClient(&redis.Options{Addr: redisServer.Addr()}),
		time.Hour,
	)

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("router-test-secret"),
		Issuer:        "furryfriends-auth",
		Audience:      "furryfriends-api",
	})

	handler, err := NewHTTPHandler(Dependencies{
		Directory: directoryService,
		Chat:      chatService,
		Playdates: playdateService,
		Interests: interestService,
		Tokens:    tokenIssuer,
		Sessions:  sessionStore,
		Clock:     clock,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &testHarness{handler: handler, now: &now}
}

func (h *testHarness) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}

// registerAndLogin provisions an account and returns its access token.
func (h *testHarness) registerAndLogin(t *testing.T, username, password string) string {
	t.Helper()
	recorder := h.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username":         username,
		"password":         password,
		"confirm_password": password,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("register %q failed with status %d: %s", username, recorder.Code, recorder.Body.String())
	}

	recorder = h.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if recorder.Code != http.StatusOK {
		t.Fatalf("login %q failed with status %d: %s", username, recorder.Code, recorder.Body.String())
	}
	var tokens tokenResponsePayload
	decodeBody(t, recorder, &tokens)
	if tokens.AccessToken == "" {
		t.Fatalf("login %q returned no access token", username)
	}
	return tokens.AccessToken
}
