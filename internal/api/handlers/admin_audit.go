package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/speedfriending/backend/internal/admin"
	"github.com/speedfriending/backend/internal/store"
)

// GetAdminAuditLogs returns paginated audit log entries
func GetAdminAuditLogs(st store.AdminStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.DefaultQuery("admin_username", "")
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "25"))
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

		logs, err := admin.GetAdminAuditLogs(c.Request.Context(), st, username, limit, offset)
		if err != nil {
			log.Printf("[ADMIN] Failed to fetch audit logs: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit logs"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": logs, "limit": limit, "offset": offset})
	}
}
