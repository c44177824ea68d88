package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// Only validation paths are exercised here, mirroring pkg/api's own
// "happy path needs a real service" test idiom: tenantFromRequest and
// uuidParam never touch the store, so they are testable in isolation.

func TestTenantFromRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("missing header returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/runs/x", nil)

		_, ok := tenantFromRequest(c)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "X-Tenant-ID header is required")
	})

	t.Run("non-uuid header returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/runs/x", nil)
		c.Request.Header.Set(tenantHeader, "not-a-uuid")

		_, ok := tenantFromRequest(c)

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid X-Tenant-ID")
	})

	t.Run("valid uuid header is parsed", func(t *testing.T) {
		want := uuid.New()
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/runs/x", nil)
		c.Request.Header.Set(tenantHeader, want.String())

		got, ok := tenantFromRequest(c)

		assert.True(t, ok)
		assert.Equal(t, want, got)
	})
}

func TestUUIDParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("invalid path param returns 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid", nil)
		c.Params = gin.Params{{Key: "run_id", Value: "not-a-uuid"}}

		_, ok := uuidParam(c, "run_id")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid run_id")
	})

	t.Run("valid path param is parsed", func(t *testing.T) {
		want := uuid.New()
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		c.Request = httptest.NewRequest(http.MethodGet, "/runs/"+want.String(), nil)
		c.Params = gin.Params{{Key: "run_id", Value: want.String()}}

		got, ok := uuidParam(c, "run_id")

		assert.True(t, ok)
		assert.Equal(t, want, got)
	})
}
