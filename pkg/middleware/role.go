package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mochiquin/safehome/pkg/utils"
)

// RequireRole gates a route group to callers carrying the given role
// claim. Must run after AuthBearer.
func RequireRole(role string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			callerRole, ok := utils.GetRoleFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}
			if callerRole != role {
				logger.Warn("Role check failed",
					zap.String("required", role),
					zap.String("actual", callerRole),
					zap.String("path", r.URL.Path),
				)
				utils.ResponseForbidden(w, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
