// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/danielhkuo/retroboard/auth"
	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/sequencer"
	"github.com/danielhkuo/retroboard/store"
)

// TestDSN is an in-memory sqlite database, private to one connection
const TestDSN = "file::memory:"

// SetupTestStore opens a fresh sqlite store with the full schema
func SetupTestStore(t *testing.T) *store.SQL {
	t.Helper()

	s, err := store.OpenSQL("sqlite", TestDSN)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:               3318,
		DatabaseURL:        TestDSN,
		DatabaseType:       cliparse.DatabaseSQLite,
		UserTokenSalt:      "test-user-salt",
		JoinRequestCeiling: engine.DefaultJoinRequestCeiling,
		MaxVoteLimit:       engine.DefaultMaxVoteLimit,
		SubscriberBuffer:   64,
	}
}

// NewTestEngine returns an engine with a fixed clock and cheap passphrase
// hashing. Ids stay unique across goroutines.
func NewTestEngine() *engine.Engine {
	var n atomic.Int64
	e := engine.New()
	e.NewID = func() string { return fmt.Sprintf("id-%d", n.Add(1)) }
	e.Now = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }
	e.PassphraseCost = bcrypt.MinCost
	return e
}

// SetupTestHub creates a hub over a fresh sqlite store
func SetupTestHub(t *testing.T, cfg cliparse.Config) *sequencer.Hub {
	t.Helper()

	e := NewTestEngine()
	e.JoinRequestCeiling = cfg.JoinRequestCeiling
	e.MaxVoteLimit = cfg.MaxVoteLimit

	hub := sequencer.NewHub(e, SetupTestStore(t), sequencer.Config{SubscriberBuffer: cfg.SubscriberBuffer},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(hub.Close)
	return hub
}

// UserHeaders returns identity headers for userID
func UserHeaders(cfg cliparse.Config, userID string) map[string]string {
	return map[string]string{
		middleware.HeaderUserID:    userID,
		middleware.HeaderUserToken: auth.GenerateUserToken(userID, cfg.UserTokenSalt),
	}
}

// CreateTestBoard creates a board with two columns owned by owner
func CreateTestBoard(t *testing.T, hub *sequencer.Hub, owner string, req models.CreateBoardRequest) models.Board {
	t.Helper()

	if req.Name == "" {
		req.Name = "Test Board"
	}
	if req.Columns == nil {
		req.Columns = []models.CreateColumnArgs{
			{Name: "Went well", Color: "green"},
			{Name: "To improve", Color: "red"},
		}
	}
	b, err := hub.CreateBoard(context.Background(), owner, req)
	if err != nil {
		t.Fatalf("Failed to create test board: %v", err)
	}
	return b
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body any, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
