package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"credit-ledger-bridge/internal/core/domain"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	action       domain.AuditAction
	resourceType string
}

// auditRoutes maps "METHOD route-pattern" to the audited action.
var auditRoutes = map[string]auditRoute{
	"POST /api/v1/auth/register":                  {domain.AuditActionRegister, "user"},
	"POST /api/v1/auth/login":                     {domain.AuditActionLogin, "session"},
	"POST /api/v1/facilities":                     {domain.AuditActionRegisterFacility, "facility"},
	"POST /api/v1/credits":                        {domain.AuditActionSubmitCredit, "credit"},
	"POST /api/v1/credits/:id/validate":           {domain.AuditActionValidateCredit, "credit"},
	"POST /api/v1/credits/:id/ledger-binding":     {domain.AuditActionReattachBinding, "credit"},
	"POST /api/v1/credits/:id/purchase":           {domain.AuditActionPurchaseCredit, "credit"},
	"POST /api/v1/credits/:id/settlements/replay": {domain.AuditActionReplaySettlement, "credit"},
	"DELETE /api/v1/credits":                      {domain.AuditActionClearCredits, "credit"},
}

// AuditLog records successful writes after the handler ran. A 202 partial
// completion is audited too, since durable steps happened.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead || c.Request.Method == http.MethodOptions {
			return
		}

		route, ok := auditRoutes[c.Request.Method+" "+c.FullPath()]
		if !ok {
			return
		}

		var userID *uuid.UUID
		if caller, ok := CallerFrom(c); ok {
			userID = &caller.UserID
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			UserID:       userID,
			Action:       route.action,
			ResourceType: route.resourceType,
			ResourceID:   c.Param("id"),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now().UTC(),
		})
	}
}
