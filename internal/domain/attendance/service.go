package attendance

import (
	"context"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
)

// AttendanceService drives the per-user, per-day state machine
// NONE -> OPEN -> CLOSED, plus administrative corrections.
type AttendanceService interface {
	// CheckIn opens today's session for the caller
	CheckIn(ctx context.Context, req CheckInRequest) (AttendanceResponse, error)

	// CheckOut closes the caller's open session for today
	CheckOut(ctx context.Context, identity user.Identity) (AttendanceResponse, error)

	// Correct patches check-in, check-out or name directly (admin)
	Correct(ctx context.Context, req CorrectionRequest) (AttendanceResponse, error)

	// Get retrieves a single attendance record by ID
	Get(ctx context.Context, id string) (AttendanceResponse, error)

	// Remove hard deletes an attendance record
	Remove(ctx context.Context, id string) error
}
