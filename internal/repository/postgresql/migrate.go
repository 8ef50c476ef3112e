package postgresql

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/database"
)

type migration struct {
	name  string
	query string
}

// Every step is idempotent so Migrate can run on each start. User ids come
// from the identity provider and are opaque, so they are stored as TEXT.
var migrations = []migration{
	{
		name:  "enable pgcrypto",
		query: `CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	},
	{
		name: "create users",
		query: `
			CREATE TABLE IF NOT EXISTS users (
				id         TEXT PRIMARY KEY,
				nama       TEXT NOT NULL,
				role       TEXT NOT NULL DEFAULT 'mahasiswa',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name: "create attendances",
		query: `
			CREATE TABLE IF NOT EXISTS attendances (
				id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
				user_id      TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				work_date    DATE NOT NULL,
				check_in     TIMESTAMPTZ NOT NULL,
				check_out    TIMESTAMPTZ,
				latitude     DOUBLE PRECISION,
				longitude    DOUBLE PRECISION,
				evidence_ref TEXT,
				display_name TEXT,
				created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
	},
	{
		name: "index one open attendance per user per day",
		query: `
			CREATE UNIQUE INDEX IF NOT EXISTS attendances_one_open_per_day
			ON attendances (user_id, work_date)
			WHERE check_out IS NULL`,
	},
	{
		name:  "index attendances by check-in",
		query: `CREATE INDEX IF NOT EXISTS attendances_check_in_idx ON attendances (check_in)`,
	},
	{
		name:  "index attendances by user and check-in",
		query: `CREATE INDEX IF NOT EXISTS attendances_user_check_in_idx ON attendances (user_id, check_in)`,
	},
}

// Migrate applies the attendance schema inside a single transaction.
func Migrate(ctx context.Context, db *database.DB) error {
	slog.Info("running database migrations", "steps", len(migrations))

	err := WithTransaction(ctx, db, func(ctx context.Context) error {
		q := GetQuerier(ctx, db)
		for _, m := range migrations {
			if _, err := q.Exec(ctx, m.query); err != nil {
				return fmt.Errorf("migration %q failed: %w", m.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	slog.Info("database migrations completed")
	return nil
}
