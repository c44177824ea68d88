package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/researchops/runcore/internal/model"
)

// tenantHeader is the pre-authenticated tenant id a reverse proxy or
// gateway is expected to attach to every request reaching this package.
// Identity and RBAC are explicitly out of the Run Execution Core's scope
// (spec.md §1); this is the narrow seam the rest of the package reads
// through instead of implementing one.
const tenantHeader = "X-Tenant-ID"

func tenantFromRequest(c *gin.Context) (model.TenantID, bool) {
	raw := c.GetHeader(tenantHeader)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": tenantHeader + " header is required"})
		return model.TenantID{}, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid " + tenantHeader})
		return model.TenantID{}, false
	}
	return id, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_error", "message": "invalid " + name})
		return uuid.UUID{}, false
	}
	return id, true
}
