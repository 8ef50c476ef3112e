package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/database"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/jackc/pgx/v5"
)

// attendanceColumns selects a record plus the joined user name. Callers alias
// the attendance row as "a" and users as "u".
const attendanceColumns = `
	a.id, a.user_id, a.work_date, a.check_in, a.check_out,
	a.latitude, a.longitude, a.evidence_ref, a.display_name,
	a.created_at, a.updated_at,
	u.nama`

type attendanceRepository struct {
	db *database.DB
}

func scanAttendance(row pgx.Row) (attendance.Attendance, error) {
	var att attendance.Attendance
	err := row.Scan(
		&att.ID, &att.UserID, &att.WorkDate, &att.CheckInAt, &att.CheckOutAt,
		&att.Latitude, &att.Longitude, &att.EvidenceRef, &att.DisplayName,
		&att.CreatedAt, &att.UpdatedAt,
		&att.UserName,
	)
	if err != nil {
		return attendance.Attendance{}, err
	}

	att.CheckInAt = att.CheckInAt.UTC()
	if att.CheckOutAt != nil {
		checkOut := att.CheckOutAt.UTC()
		att.CheckOutAt = &checkOut
	}
	return att, nil
}

// Create implements attendance.AttendanceRepository.
func (a *attendanceRepository) Create(ctx context.Context, newAttendance attendance.Attendance) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		WITH a AS (
			INSERT INTO attendances (
				user_id, work_date, check_in, latitude, longitude, evidence_ref, display_name
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7
			) RETURNING *
		)
		SELECT ` + attendanceColumns + `
		FROM a
		LEFT JOIN users u ON u.id = a.user_id
	`

	created, err := scanAttendance(q.QueryRow(ctx, query,
		newAttendance.UserID,
		newAttendance.WorkDate,
		newAttendance.CheckInAt.UTC(),
		newAttendance.Latitude,
		newAttendance.Longitude,
		newAttendance.EvidenceRef,
		newAttendance.DisplayName,
	))
	if err != nil {
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: %w", translateError(err))
	}

	return created, nil
}

// FindOpenForUserInWindow implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindOpenForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.user_id = $1
		  AND a.check_out IS NULL
		  AND a.check_in >= $2
		  AND a.check_in < $3
		ORDER BY a.check_in DESC
		LIMIT 1
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, userID, w.Start, w.End))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No open session in this window
		}
		return nil, fmt.Errorf("failed to find open attendance: %w", translateError(err))
	}

	return &att, nil
}

// HasClosedForUserInWindow implements attendance.AttendanceRepository.
func (a *attendanceRepository) HasClosedForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (bool, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM attendances
			WHERE user_id = $1
			  AND check_out IS NOT NULL
			  AND check_in >= $2
			  AND check_in < $3
		)
	`

	var exists bool
	if err := q.QueryRow(ctx, query, userID, w.Start, w.End).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check closed attendance: %w", translateError(err))
	}

	return exists, nil
}

// FindByID implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE a.id = $1
	`

	att, err := scanAttendance(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attendance by id: %w", translateError(err))
	}

	return &att, nil
}

// FindByFilters implements attendance.AttendanceRepository.
func (a *attendanceRepository) FindByFilters(ctx context.Context, filter attendance.Filter) ([]attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	// Build WHERE clause
	conditions := []string{"TRUE"}
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != nil {
		conditions = append(conditions, fmt.Sprintf("a.user_id = $%d", argIdx))
		args = append(args, *filter.UserID)
		argIdx++
	}

	if filter.Name != nil {
		conditions = append(conditions, fmt.Sprintf(`COALESCE(a.display_name, u.nama) ILIKE $%d ESCAPE '\'`, argIdx))
		args = append(args, "%"+escapeLike(*filter.Name)+"%")
		argIdx++
	}

	if filter.Window != nil {
		conditions = append(conditions, fmt.Sprintf("a.check_in >= $%d AND a.check_in < $%d", argIdx, argIdx+1))
		args = append(args, filter.Window.Start, filter.Window.End)
		argIdx += 2
	}

	query := `
		SELECT ` + attendanceColumns + `
		FROM attendances a
		LEFT JOIN users u ON u.id = a.user_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY a.check_in ASC, a.id ASC
	`

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", translateError(err))
	}
	defer rows.Close()

	attendances := []attendance.Attendance{}
	for rows.Next() {
		att, err := scanAttendance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		attendances = append(attendances, att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendances: %w", translateError(err))
	}

	return attendances, nil
}

// Update implements attendance.AttendanceRepository.
func (a *attendanceRepository) Update(ctx context.Context, id string, patch attendance.Patch) (attendance.Attendance, error) {
	q := GetQuerier(ctx, a.db)

	updates := []string{}
	args := []interface{}{}
	argIdx := 1

	if patch.CheckInAt != nil {
		updates = append(updates, fmt.Sprintf("check_in = $%d", argIdx))
		args = append(args, patch.CheckInAt.UTC())
		argIdx++
	}
	if patch.CheckOutAt != nil {
		updates = append(updates, fmt.Sprintf("check_out = $%d", argIdx))
		args = append(args, patch.CheckOutAt.UTC())
		argIdx++
	}
	if patch.WorkDate != nil {
		updates = append(updates, fmt.Sprintf("work_date = $%d", argIdx))
		args = append(args, *patch.WorkDate)
		argIdx++
	}
	if patch.DisplayName != nil {
		updates = append(updates, fmt.Sprintf("display_name = $%d", argIdx))
		args = append(args, *patch.DisplayName)
		argIdx++
	}

	if len(updates) == 0 {
		return attendance.Attendance{}, fmt.Errorf("%w: no updatable fields provided for attendance update", attendance.ErrInvalidArgument)
	}

	updates = append(updates, "updated_at = NOW()")
	args = append(args, id)

	query := `
		WITH a AS (
			UPDATE attendances
			SET ` + strings.Join(updates, ", ") + fmt.Sprintf(`
			WHERE id = $%d
			RETURNING *
		)`, argIdx) + `
		SELECT ` + attendanceColumns + `
		FROM a
		LEFT JOIN users u ON u.id = a.user_id
	`

	updated, err := scanAttendance(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return attendance.Attendance{}, attendance.ErrAttendanceNotFound
		}
		return attendance.Attendance{}, fmt.Errorf("failed to update attendance: %w", translateError(err))
	}

	return updated, nil
}

// Delete implements attendance.AttendanceRepository.
func (a *attendanceRepository) Delete(ctx context.Context, id string) error {
	q := GetQuerier(ctx, a.db)

	query := `DELETE FROM attendances WHERE id = $1`

	commandTag, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete attendance: %w", translateError(err))
	}

	if commandTag.RowsAffected() == 0 {
		return attendance.ErrAttendanceNotFound
	}

	return nil
}

// escapeLike neutralises LIKE wildcards so the name filter is a literal
// substring match.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func NewAttendanceRepository(db *database.DB) attendance.AttendanceRepository {
	return &attendanceRepository{db: db}
}
