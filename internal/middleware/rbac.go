// Package middleware (rbac.go) implements role checks on top of the principal
// set by AuthMiddleware.
//
// Route-level checks are coarse: they only say which roles may reach a handler.
// Ownership ("may this partner edit this training") is decided by auth.CanAct
// inside the workflow services, where the record is loaded anyway.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
)

// RequireRole allows the request through when the principal holds one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := PrincipalFrom(c)
		if p == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
			})
			return
		}

		if !slices.Contains(roles, p.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}
