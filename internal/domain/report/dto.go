package report

import (
	"strings"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
)

// ========================================
// DAILY REPORT
// ========================================

type DailyReportRequest struct {
	Viewer user.Identity
	Name   *string // optional substring filter, admins only
}

type DailyReportResponse struct {
	ReportDate string                          `json:"report_date"`
	Data       []attendance.AttendanceResponse `json:"data"`
}

// ========================================
// SEARCH BY DATE
// ========================================

type DateReportResponse struct {
	Date string                          `json:"date"`
	Data []attendance.AttendanceResponse `json:"data"`
}

// ========================================
// RANGE REPORT
// ========================================

// RangeReportRequest combines a name filter with an inclusive local date
// range. Either bound may be omitted.
type RangeReportRequest struct {
	Name      *string
	StartDate *string
	EndDate   *string
}

// Normalize drops blank optional values so query strings like "?name=" behave
// as if the parameter was absent.
func (r *RangeReportRequest) Normalize() {
	r.Name = trimmedOrNil(r.Name)
	r.StartDate = trimmedOrNil(r.StartDate)
	r.EndDate = trimmedOrNil(r.EndDate)
}

type RangeReportResponse struct {
	ReportDate string                          `json:"report_date"`
	StartDate  *string                         `json:"start_date,omitempty"`
	EndDate    *string                         `json:"end_date,omitempty"`
	Name       *string                         `json:"name,omitempty"`
	Total      int                             `json:"total"`
	Data       []attendance.AttendanceResponse `json:"data"`
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
