package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/emilythestrangee/stackit/backend/internal/models"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not found", fmt.Errorf("question: %w", models.ErrNotFound), http.StatusNotFound, `{"error":"question: not found"}`},
		{"self vote", models.ErrSelfVote, http.StatusForbidden, `{"error":"forbidden: cannot vote on your own post"}`},
		{"invalid reference", models.ErrInvalidReference, http.StatusBadRequest, `{"error":"invalid reference"}`},
		{"validation", fmt.Errorf("%w: title too short", models.ErrValidation), http.StatusBadRequest, `{"error":"validation failed: title too short"}`},
		{"conflict", models.ErrConflict, http.StatusConflict, `{"error":"conflict"}`},
		{"unauthenticated", models.ErrUnauthenticated, http.StatusUnauthorized, `{"error":"unauthenticated"}`},
		{"internal", errors.New("connection reset by peer"), http.StatusInternalServerError, `{"error":"Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestParamID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	for _, raw := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: raw}}

		_, ok := paramID(c, "id")
		assert.False(t, ok, raw)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Params = gin.Params{{Key: "id", Value: "42"}}
	id, ok := paramID(c, "id")
	assert.True(t, ok)
	assert.EqualValues(t, 42, id)
}

func TestQueryInt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?page=3&limit=abc", nil)

	assert.Equal(t, 3, queryInt(c, "page", 1))
	assert.Equal(t, 20, queryInt(c, "limit", 20))
	assert.Equal(t, 7, queryInt(c, "missing", 7))
}

func TestExtractUserIDRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	_, ok := extractUserID(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, _ = gin.CreateTestContext(httptest.NewRecorder())
	c.Set("user_id", int64(5))
	id, ok := extractUserID(c)
	assert.True(t, ok)
	assert.EqualValues(t, 5, id)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "ada@example.com", normalizeEmail("  Ada@Example.COM "))
	assert.Equal(t, "ada@example.com", normalizeEmail("ada@example.com"))
}
