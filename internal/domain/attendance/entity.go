package attendance

import (
	"time"
)

type Attendance struct {
	ID          string
	UserID      string
	WorkDate    time.Time // local calendar day of CheckInAt, midnight UTC
	CheckInAt   time.Time
	CheckOutAt  *time.Time
	Latitude    *float64
	Longitude   *float64
	EvidenceRef *string
	DisplayName *string // administrative override of the joined user name
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Join
	UserName *string
}

// IsOpen reports whether the session has not been checked out yet.
func (a Attendance) IsOpen() bool {
	return a.CheckOutAt == nil
}

// Name resolves the display name shown in reports.
func (a Attendance) Name() string {
	if a.DisplayName != nil {
		return *a.DisplayName
	}
	if a.UserName != nil {
		return *a.UserName
	}
	return ""
}

// HasClockSkew reports a closed record whose check-out is not after its
// check-in. Check-out accepts these and corrections can still be pending, so
// readers must not assume the order.
func (a Attendance) HasClockSkew() bool {
	return a.CheckOutAt != nil && !a.CheckOutAt.After(a.CheckInAt)
}

// Patch is applied by the repository in a single update. Nil fields are left
// untouched.
type Patch struct {
	CheckInAt   *time.Time
	CheckOutAt  *time.Time
	DisplayName *string
	WorkDate    *time.Time
}

func (p Patch) IsEmpty() bool {
	return p.CheckInAt == nil && p.CheckOutAt == nil && p.DisplayName == nil && p.WorkDate == nil
}
