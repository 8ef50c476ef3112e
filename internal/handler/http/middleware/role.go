package middleware

import (
	"fmt"
	"net/http"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http/response"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
)

// RequireRole rejects callers whose role is not one of roles. Tokens without
// a role claim are treated as mahasiswa.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(roles))
	for _, role := range roles {
		allowed = append(allowed, string(role))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := IdentityFromContext(r.Context())
			if err != nil {
				response.HandleError(w, err)
				return
			}

			role := identity.Role
			if role == "" {
				role = user.RoleMahasiswa
			}
			if !validator.IsInSlice(string(role), allowed) {
				response.Forbidden(w, fmt.Sprintf("Role '%s' may not use this endpoint", role))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), user.Identity{
				UserID:      identity.UserID,
				DisplayName: identity.DisplayName,
				Role:        role,
			})))
		})
	}
}
