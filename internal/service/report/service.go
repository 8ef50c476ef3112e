package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/report"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/evidence"
)

type ReportServiceImpl struct {
	attendance.AttendanceRepository
	evidenceService evidence.EvidenceService
	loc             *time.Location
	now             timeutil.Clock
}

func NewReportService(
	attendanceRepo attendance.AttendanceRepository,
	evidenceService evidence.EvidenceService,
	loc *time.Location,
	clock timeutil.Clock,
) report.ReportService {
	if clock == nil {
		clock = time.Now
	}
	return &ReportServiceImpl{
		AttendanceRepository: attendanceRepo,
		evidenceService:      evidenceService,
		loc:                  loc,
		now:                  clock,
	}
}

// DailyReport implements report.ReportService.
func (s *ReportServiceImpl) DailyReport(ctx context.Context, req report.DailyReportRequest) (report.DailyReportResponse, error) {
	now := s.now()
	today := timeutil.TodayWindow(now, s.loc)

	filter := attendance.Filter{Window: &today}
	if req.Viewer.IsAdmin() {
		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			name := strings.TrimSpace(*req.Name)
			filter.Name = &name
		}
	} else {
		filter.UserID = &req.Viewer.UserID
	}

	records, err := s.AttendanceRepository.FindByFilters(ctx, filter)
	if err != nil {
		return report.DailyReportResponse{}, fmt.Errorf("failed to get daily attendance: %w", err)
	}

	return report.DailyReportResponse{
		ReportDate: timeutil.ToLocalDisplay(now, s.loc, timeutil.DateLayout),
		Data:       s.render(ctx, records, timeutil.TimeLayout),
	}, nil
}

// SearchByName implements report.ReportService.
func (s *ReportServiceImpl) SearchByName(ctx context.Context, name string) ([]attendance.AttendanceResponse, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", attendance.ErrInvalidArgument)
	}

	records, err := s.AttendanceRepository.FindByFilters(ctx, attendance.Filter{Name: &name})
	if err != nil {
		return nil, fmt.Errorf("failed to search attendance by name: %w", err)
	}

	return s.render(ctx, records, timeutil.DateTimeOffsetLayout), nil
}

// SearchByDate implements report.ReportService.
func (s *ReportServiceImpl) SearchByDate(ctx context.Context, rawDate string) (report.DateReportResponse, error) {
	date, err := timeutil.ParseFlexibleDate(rawDate, s.loc)
	if err != nil {
		return report.DateReportResponse{}, err
	}

	day := timeutil.DayWindow(date.In(s.loc), s.loc)
	records, err := s.AttendanceRepository.FindByFilters(ctx, attendance.Filter{Window: &day})
	if err != nil {
		return report.DateReportResponse{}, fmt.Errorf("failed to search attendance by date: %w", err)
	}

	return report.DateReportResponse{
		Date: timeutil.ToLocalDisplay(date, s.loc, timeutil.DateLayout),
		Data: s.render(ctx, records, timeutil.DateTimeOffsetLayout),
	}, nil
}

// RangeReport implements report.ReportService.
func (s *ReportServiceImpl) RangeReport(ctx context.Context, req report.RangeReportRequest) (report.RangeReportResponse, error) {
	req.Normalize()

	filter := attendance.Filter{Name: req.Name}

	var start, end *time.Time
	if req.StartDate != nil {
		t, err := timeutil.ParseFlexibleDate(*req.StartDate, s.loc)
		if err != nil {
			return report.RangeReportResponse{}, fmt.Errorf("start_date: %w", err)
		}
		local := t.In(s.loc)
		start = &local
	}
	if req.EndDate != nil {
		t, err := timeutil.ParseFlexibleDate(*req.EndDate, s.loc)
		if err != nil {
			return report.RangeReportResponse{}, fmt.Errorf("end_date: %w", err)
		}
		local := t.In(s.loc)
		end = &local
	}

	var startDate, endDate *string
	switch {
	case start != nil && end != nil:
		w := timeutil.SpanWindow(*start, *end, s.loc)
		if !w.Start.Before(w.End) {
			return report.RangeReportResponse{}, fmt.Errorf("%w: end_date must not be before start_date", attendance.ErrInvalidArgument)
		}
		filter.Window = &w
	case start != nil:
		w := timeutil.Window{Start: timeutil.DayWindow(*start, s.loc).Start, End: maxInstant}
		filter.Window = &w
	case end != nil:
		w := timeutil.Window{Start: minInstant, End: timeutil.DayWindow(*end, s.loc).End}
		filter.Window = &w
	}
	if start != nil {
		v := start.Format(timeutil.DateLayout)
		startDate = &v
	}
	if end != nil {
		v := end.Format(timeutil.DateLayout)
		endDate = &v
	}

	records, err := s.AttendanceRepository.FindByFilters(ctx, filter)
	if err != nil {
		return report.RangeReportResponse{}, fmt.Errorf("failed to get attendance report: %w", err)
	}

	data := s.render(ctx, records, timeutil.DateTimeOffsetLayout)
	return report.RangeReportResponse{
		ReportDate: timeutil.ToLocalDisplay(s.now(), s.loc, timeutil.DateLayout),
		StartDate:  startDate,
		EndDate:    endDate,
		Name:       req.Name,
		Total:      len(data),
		Data:       data,
	}, nil
}

// Open-ended range bounds. Both stay inside what Postgres timestamptz holds.
var (
	minInstant = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxInstant = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
)

func (s *ReportServiceImpl) render(ctx context.Context, records []attendance.Attendance, layout string) []attendance.AttendanceResponse {
	out := make([]attendance.AttendanceResponse, 0, len(records))
	for _, rec := range records {
		resp := rec.ToResponse(s.loc, layout)
		if rec.EvidenceRef != nil {
			url, err := s.evidenceService.URL(ctx, *rec.EvidenceRef)
			switch {
			case errors.Is(err, evidence.ErrEvidenceMissing):
				slog.WarnContext(ctx, "attendance proof file is missing", "attendance_id", rec.ID, "ref", *rec.EvidenceRef)
			case err != nil:
				slog.ErrorContext(ctx, "failed to resolve attendance proof url", "ref", *rec.EvidenceRef, "error", err)
			default:
				resp.EvidenceURL = &url
			}
		}
		out = append(out, resp)
	}
	return out
}
