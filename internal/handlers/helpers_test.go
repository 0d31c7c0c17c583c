package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/authguard/internal/auth"
	"github.com/BradenHooton/authguard/internal/models"
	pkghttp "github.com/BradenHooton/authguard/pkg/http"
	pkglogger "github.com/BradenHooton/authguard/pkg/logger"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func discardAudit() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(discardLogger())
}

// newTestRequest creates an HTTP request with JSON body for testing
func newTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:40000"
	return req
}

// withAdminContext adds admin claims to the request context
func withAdminContext(req *http.Request, subject string) *http.Request {
	claims := &auth.AdminClaims{Role: "admin"}
	claims.Subject = subject
	return req.WithContext(context.WithValue(req.Context(), auth.AdminContextKey, claims))
}

// assertJSONResponse checks the status and content type and decodes the body
func assertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	if target != nil {
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), target), "Failed to decode response JSON")
	}
}

// assertErrorResponse checks that response is a valid error response
func assertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
}

type trackerCall struct {
	Op       string
	Identity string
	Origin   string
	Actor    string
}

// fakeTracker implements handlers.LockoutTracker for testing
type fakeTracker struct {
	mu     sync.Mutex
	calls  []trackerCall
	status models.LockStatus
	result models.FailureResult
	unlock int
	err    error
}

func (f *fakeTracker) record(c trackerCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeTracker) IsLocked(ctx context.Context, identity, origin string) (models.LockStatus, error) {
	f.record(trackerCall{Op: "status", Identity: identity, Origin: origin})
	return f.status, f.err
}

func (f *fakeTracker) RecordFailedLogin(ctx context.Context, identity, origin string) (models.FailureResult, error) {
	f.record(trackerCall{Op: "failure", Identity: identity, Origin: origin})
	return f.result, f.err
}

func (f *fakeTracker) ClearLoginAttempts(ctx context.Context, identity, origin string) error {
	f.record(trackerCall{Op: "clear", Identity: identity, Origin: origin})
	return f.err
}

func (f *fakeTracker) UnlockAccount(ctx context.Context, identity, actor string) (int, error) {
	f.record(trackerCall{Op: "unlock", Identity: identity, Actor: actor})
	return f.unlock, f.err
}

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
