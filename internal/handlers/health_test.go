package handlers_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BradenHooton/authguard/internal/handlers"
)

func TestHealth(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		want   handlers.HealthResponse
	}{
		{"store up", nil, 200, handlers.HealthResponse{Status: "healthy", Store: "redis", Detail: "up"}},
		{"store down", errors.New("dial tcp: connection refused"), 503, handlers.HealthResponse{Status: "unhealthy", Store: "redis", Detail: "down"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler("redis", func(ctx context.Context) error {
				_, hasDeadline := ctx.Deadline()
				assert.True(t, hasDeadline)
				return tt.err
			}, discardLogger())

			w := httptest.NewRecorder()
			h.Health(w, httptest.NewRequest("GET", "/health", nil))

			var resp handlers.HealthResponse
			assertJSONResponse(t, w, tt.status, &resp)
			assert.Equal(t, tt.want, resp)
		})
	}
}
