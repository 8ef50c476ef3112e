package postgresql

import (
	"context"
	"fmt"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/database"
)

type userRepositoryImpl struct {
	db *database.DB
}

// Upsert implements user.UserRepository. A blank display name never replaces
// a stored one.
func (r *userRepositoryImpl) Upsert(ctx context.Context, identity user.Identity) error {
	q := GetQuerier(ctx, r.db)

	role := identity.Role
	if role == "" {
		role = user.RoleMahasiswa
	}

	query := `
		INSERT INTO users (id, nama, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET nama = COALESCE(NULLIF(EXCLUDED.nama, ''), users.nama),
		    role = EXCLUDED.role,
		    updated_at = NOW()
		WHERE users.nama IS DISTINCT FROM COALESCE(NULLIF(EXCLUDED.nama, ''), users.nama)
		   OR users.role IS DISTINCT FROM EXCLUDED.role
	`

	if _, err := q.Exec(ctx, query, identity.UserID, identity.DisplayName, string(role)); err != nil {
		return fmt.Errorf("failed to upsert user: %w", translateError(err))
	}

	return nil
}

func NewUserRepository(db *database.DB) user.UserRepository {
	return &userRepositoryImpl{db: db}
}
