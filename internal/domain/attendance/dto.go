package attendance

import (
	"io"
	"math"
	"strings"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
)

// ========================================
// CHECK-IN / CHECK-OUT
// ========================================

// Evidence is an uploaded proof photo. Size is the declared size in bytes.
type Evidence struct {
	File        io.Reader
	Filename    string
	ContentType string
	Size        int64
}

type CheckInRequest struct {
	Identity  user.Identity `json:"-"`
	Latitude  *float64      `json:"latitude"`
	Longitude *float64      `json:"longitude"`
	Evidence  *Evidence     `json:"-"`
}

func (r *CheckInRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Identity.UserID) {
		errs = append(errs, validator.ValidationError{
			Field:   "user_id",
			Message: "user_id is required",
		})
	}

	if (r.Latitude == nil) != (r.Longitude == nil) {
		errs = append(errs, validator.ValidationError{
			Field:   "location",
			Message: "latitude and longitude must be provided together",
		})
	}

	if r.Latitude != nil && !withinRange(*r.Latitude, 90) {
		errs = append(errs, validator.ValidationError{
			Field:   "latitude",
			Message: "latitude must be between -90 and 90",
		})
	}

	if r.Longitude != nil && !withinRange(*r.Longitude, 180) {
		errs = append(errs, validator.ValidationError{
			Field:   "longitude",
			Message: "longitude must be between -180 and 180",
		})
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// withinRange reports whether v is a finite number in [-limit, limit].
// NaN fails every comparison, so it is rejected explicitly.
func withinRange(v, limit float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	return v >= -limit && v <= limit
}

// ========================================
// ADMINISTRATIVE CORRECTION
// ========================================

// CorrectionRequest carries raw, unparsed values. Times accept any format
// timeutil.ParseFlexibleDate understands.
type CorrectionRequest struct {
	ID       string  `json:"-"`
	CheckIn  *string `json:"check_in"`
	CheckOut *string `json:"check_out"`
	Name     *string `json:"name"`
}

func (r *CorrectionRequest) IsEmpty() bool {
	return r.CheckIn == nil && r.CheckOut == nil && r.Name == nil
}

// Validate checks field shape only; time parsing happens in the service
// because it needs the configured zone.
func (r *CorrectionRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.ID) {
		errs = append(errs, validator.ValidationError{
			Field:   "id",
			Message: "id is required",
		})
	}

	if r.Name != nil {
		trimmed := strings.TrimSpace(*r.Name)
		if trimmed == "" {
			errs = append(errs, validator.ValidationError{
				Field:   "name",
				Message: "name must not be blank",
			})
		} else if len(trimmed) > 255 {
			errs = append(errs, validator.ValidationError{
				Field:   "name",
				Message: "name must not exceed 255 characters",
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}

// ========================================
// RESPONSES
// ========================================

type AttendanceResponse struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Name        string   `json:"name"`
	WorkDate    string   `json:"work_date"`
	CheckIn     string   `json:"check_in"`
	CheckOut    *string  `json:"check_out"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	EvidenceURL *string  `json:"evidence_url,omitempty"`
	ClockSkew   bool     `json:"clock_skew,omitempty"`
}

// ToResponse renders a record in loc using layout for both timestamps.
// EvidenceURL is left for the caller to resolve.
func (a Attendance) ToResponse(loc *time.Location, layout string) AttendanceResponse {
	resp := AttendanceResponse{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name(),
		WorkDate:  a.WorkDate.Format(timeutil.DateLayout),
		CheckIn:   timeutil.ToLocalDisplay(a.CheckInAt, loc, layout),
		Latitude:  a.Latitude,
		Longitude: a.Longitude,
		ClockSkew: a.HasClockSkew(),
	}
	if a.CheckOutAt != nil {
		checkOut := timeutil.ToLocalDisplay(*a.CheckOutAt, loc, layout)
		resp.CheckOut = &checkOut
	}
	return resp
}
