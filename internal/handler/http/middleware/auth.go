package middleware

import (
	"context"
	"net/http"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/handler/http/response"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type identityKey struct{}

// AuthRequired accepts verified access tokens only and stores the caller's
// identity in the request context. It must run after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		tokenType, ok := claims[jwt.ClaimType].(string)
		if !ok || tokenType != jwt.TokenTypeAccess {
			response.HandleError(w, user.ErrInvalidToken)
			return
		}

		userID, _ := claims[jwt.ClaimUserID].(string)
		if userID == "" {
			response.HandleError(w, user.ErrIdentityMissing)
			return
		}
		name, _ := claims[jwt.ClaimName].(string)
		role, _ := claims[jwt.ClaimRole].(string)

		identity := user.Identity{
			UserID:      userID,
			DisplayName: name,
			Role:        user.Role(role),
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

func WithIdentity(ctx context.Context, identity user.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFromContext returns the identity stored by AuthRequired
func IdentityFromContext(ctx context.Context) (user.Identity, error) {
	identity, ok := ctx.Value(identityKey{}).(user.Identity)
	if !ok || identity.UserID == "" {
		return user.Identity{}, user.ErrIdentityMissing
	}
	return identity, nil
}
