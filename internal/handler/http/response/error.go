package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/storage"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses. Business rejections are
// answered quietly; only infrastructure faults are logged.
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Identity errors
	case errors.Is(err, user.ErrInvalidToken),
		errors.Is(err, user.ErrIdentityMissing):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrAdminPrivilegeRequired):
		Forbidden(w, "Admin privilege required")

	// State machine rejections
	case errors.Is(err, attendance.ErrAlreadyCheckedIn):
		Conflict(w, attendance.ErrAlreadyCheckedIn.Error())
	case errors.Is(err, attendance.ErrAlreadyCheckedOut):
		Conflict(w, attendance.ErrAlreadyCheckedOut.Error())
	case errors.Is(err, attendance.ErrNoOpenCheckIn):
		NotFound(w, attendance.ErrNoOpenCheckIn.Error())
	case errors.Is(err, attendance.ErrAttendanceNotFound):
		NotFound(w, "Attendance record not found")

	// Input errors
	case errors.Is(err, attendance.ErrInvalidDate),
		errors.Is(err, attendance.ErrInvalidArgument),
		errors.Is(err, attendance.ErrInvalidTimeOrder),
		errors.Is(err, attendance.ErrEvidenceRequired),
		errors.Is(err, attendance.ErrEvidenceInvalidType),
		errors.Is(err, attendance.ErrEvidenceTooLarge),
		errors.Is(err, storage.ErrInvalidPath):
		BadRequest(w, err.Error(), nil)

	// Infrastructure
	case errors.Is(err, attendance.ErrStorageUnavailable):
		slog.Error("attendance storage unavailable", "error", err)
		ServiceUnavailable(w, "Service temporarily unavailable, please retry")

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
