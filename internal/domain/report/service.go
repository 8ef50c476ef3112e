package report

import (
	"context"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
)

type ReportService interface {
	// DailyReport lists today's records; non-admin viewers only see their own
	DailyReport(ctx context.Context, req DailyReportRequest) (DailyReportResponse, error)

	// SearchByName matches the display name case-insensitively
	SearchByName(ctx context.Context, name string) ([]attendance.AttendanceResponse, error)

	// SearchByDate lists records that checked in on the given local date
	SearchByDate(ctx context.Context, rawDate string) (DateReportResponse, error)

	// RangeReport combines name and date-range filters
	RangeReport(ctx context.Context, req RangeReportRequest) (RangeReportResponse, error)
}
