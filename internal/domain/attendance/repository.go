package attendance

import (
	"context"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
)

// Filter narrows FindByFilters. Set fields are combined with AND.
type Filter struct {
	UserID *string
	Name   *string // case-insensitive substring of the resolved display name
	Window *timeutil.Window
}

// AttendanceRepository defines data access methods for attendance records.
// Every method touches at most one record atomically.
type AttendanceRepository interface {
	// Create inserts a new open record. A second open record for the same user
	// and work date fails with ErrAlreadyCheckedIn.
	Create(ctx context.Context, attendance Attendance) (Attendance, error)

	// FindOpenForUserInWindow returns the open record whose check-in lies in w,
	// or nil when there is none.
	FindOpenForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (*Attendance, error)

	// HasClosedForUserInWindow reports whether the user already checked out of
	// a session that started in w.
	HasClosedForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (bool, error)

	// FindByID returns nil when the record does not exist
	FindByID(ctx context.Context, id string) (*Attendance, error)

	// FindByFilters returns matching records ordered by check-in
	FindByFilters(ctx context.Context, filter Filter) ([]Attendance, error)

	Update(ctx context.Context, id string, patch Patch) (Attendance, error)
	Delete(ctx context.Context, id string) error
}
