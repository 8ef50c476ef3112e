package attendance

import (
	"errors"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
)

// Attendance domain errors
var (
	// Check-in / check-out errors
	ErrAlreadyCheckedIn  = errors.New("you have already checked in today")
	ErrAlreadyCheckedOut = errors.New("you have already checked out today")
	ErrNoOpenCheckIn     = errors.New("you have not checked in today")

	// Evidence errors
	ErrEvidenceRequired    = errors.New("attendance proof photo is required")
	ErrEvidenceInvalidType = errors.New("attendance proof must be a jpeg, png or webp image")
	ErrEvidenceTooLarge    = errors.New("attendance proof photo is too large")

	// Correction / query errors
	ErrAttendanceNotFound = errors.New("attendance record not found")
	ErrInvalidDate        = timeutil.ErrInvalidDate
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTimeOrder   = errors.New("check-out must be later than check-in")

	// Infrastructure
	ErrStorageUnavailable = errors.New("attendance storage is unavailable")
)
