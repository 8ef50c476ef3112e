package middleware

import (
	"net/http"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http/response"
)

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := IdentityFromContext(r.Context())
		if err != nil {
			response.HandleError(w, err)
			return
		}

		if !identity.IsAdmin() {
			response.HandleError(w, user.ErrAdminPrivilegeRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}
