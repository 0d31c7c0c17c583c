package handlers_test

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/authguard/internal/handlers"
	"github.com/BradenHooton/authguard/internal/models"
)

func TestLockoutStatus_DefaultsOriginToClientIP(t *testing.T) {
	tracker := &fakeTracker{status: models.LockStatus{AttemptsRemaining: 3}}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	w := httptest.NewRecorder()
	h.Status(w, newTestRequest(t, "POST", "/v1/lockout/status", handlers.LockoutRequest{Identity: "u@example.com"}))

	var resp models.LockStatus
	assertJSONResponse(t, w, 200, &resp)
	assert.False(t, resp.Locked)
	assert.Equal(t, 3, resp.AttemptsRemaining)

	require.Len(t, tracker.calls, 1)
	assert.Equal(t, trackerCall{Op: "status", Identity: "u@example.com", Origin: "198.51.100.7"}, tracker.calls[0])
}

func TestLockoutStatus_ExplicitOrigin(t *testing.T) {
	tracker := &fakeTracker{status: models.LockStatus{Locked: true, Remaining: time.Minute, RemainingMs: 60000}}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	w := httptest.NewRecorder()
	h.Status(w, newTestRequest(t, "POST", "/v1/lockout/status", handlers.LockoutRequest{Identity: "u@example.com", Origin: "device-7"}))

	var resp models.LockStatus
	assertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Locked)
	assert.Equal(t, int64(60000), resp.RemainingMs)
	assert.Equal(t, "device-7", tracker.calls[0].Origin)
}

func TestLockoutRecordFailure(t *testing.T) {
	tracker := &fakeTracker{result: models.FailureResult{Locked: true, LockoutDuration: 30 * time.Minute, LockoutMs: 1800000}}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	w := httptest.NewRecorder()
	h.RecordFailure(w, newTestRequest(t, "POST", "/v1/lockout/failures", handlers.LockoutRequest{Identity: "u@example.com"}))

	var resp models.FailureResult
	assertJSONResponse(t, w, 200, &resp)
	assert.True(t, resp.Locked)
	assert.Equal(t, int64(1800000), resp.LockoutMs)
	assert.Equal(t, "failure", tracker.calls[0].Op)
}

func TestLockoutClear_Returns204(t *testing.T) {
	tracker := &fakeTracker{}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	w := httptest.NewRecorder()
	h.Clear(w, newTestRequest(t, "POST", "/v1/lockout/clear", handlers.LockoutRequest{Identity: "u@example.com"}))

	assert.Equal(t, 204, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "clear", tracker.calls[0].Op)
}

func TestLockoutHandlers_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      interface{}
		trackErr  error
		status    int
		errorCode string
	}{
		{"missing identity", map[string]string{"origin": "1.2.3.4"}, nil, 400, "validation_error"},
		{"blank identity after trim", handlers.LockoutRequest{Identity: "   "}, models.ErrInvalidIdentity, 400, "validation_error"},
		{"store unavailable", handlers.LockoutRequest{Identity: "u@example.com"}, fmt.Errorf("get: %w", models.ErrStoreUnavailable), 503, "service_unavailable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewLockoutHandler(&fakeTracker{err: tt.trackErr}, nil, discardLogger())

			for _, fn := range []func(w *httptest.ResponseRecorder){
				func(w *httptest.ResponseRecorder) { h.Status(w, newTestRequest(t, "POST", "/", tt.body)) },
				func(w *httptest.ResponseRecorder) { h.RecordFailure(w, newTestRequest(t, "POST", "/", tt.body)) },
				func(w *httptest.ResponseRecorder) { h.Clear(w, newTestRequest(t, "POST", "/", tt.body)) },
			} {
				w := httptest.NewRecorder()
				fn(w)
				assertErrorResponse(t, w, tt.status, tt.errorCode)
			}
		})
	}
}

func TestUnlock(t *testing.T) {
	tracker := &fakeTracker{unlock: 2}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	req := withAdminContext(newTestRequest(t, "POST", "/v1/admin/unlock", handlers.UnlockRequest{Identity: "u@example.com"}), "ops-oncall")
	w := httptest.NewRecorder()
	h.Unlock(w, req)

	var resp handlers.UnlockResponse
	assertJSONResponse(t, w, 200, &resp)
	assert.Equal(t, 2, resp.Removed)
	assert.Equal(t, "u@example.com", resp.Identity)
	assert.Equal(t, trackerCall{Op: "unlock", Identity: "u@example.com", Actor: "ops-oncall"}, tracker.calls[0])
}

func TestUnlock_RequiresAdminContext(t *testing.T) {
	tracker := &fakeTracker{}
	h := handlers.NewLockoutHandler(tracker, nil, discardLogger())

	w := httptest.NewRecorder()
	h.Unlock(w, newTestRequest(t, "POST", "/v1/admin/unlock", handlers.UnlockRequest{Identity: "u@example.com"}))

	assertErrorResponse(t, w, 401, "unauthorized")
	assert.Empty(t, tracker.calls)
}
