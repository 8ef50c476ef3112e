package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/database"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/metrics"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/evidence"
)

type AttendanceServiceImpl struct {
	tx database.Transactor
	attendance.AttendanceRepository
	user.UserRepository
	evidenceService evidence.EvidenceService
	metrics         *metrics.Metrics
	loc             *time.Location
	now             timeutil.Clock
}

// CheckIn implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	resp, err := s.checkIn(ctx, req)
	s.observe(metrics.OpCheckIn, err)
	return resp, err
}

func (s *AttendanceServiceImpl) checkIn(ctx context.Context, req attendance.CheckInRequest) (attendance.AttendanceResponse, error) {
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	nowUTC := s.now().UTC()
	today := timeutil.TodayWindow(nowUTC, s.loc)
	userID := req.Identity.UserID

	open, err := s.AttendanceRepository.FindOpenForUserInWindow(ctx, userID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to look up open session: %w", err)
	}
	if open != nil {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedIn
	}

	closed, err := s.AttendanceRepository.HasClosedForUserInWindow(ctx, userID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to look up closed session: %w", err)
	}
	if closed {
		return attendance.AttendanceResponse{}, attendance.ErrAlreadyCheckedOut
	}

	// Nothing is written before the proof photo passes validation
	photo, err := s.evidenceService.Validate(req.Evidence)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	var evidenceRef *string
	if photo != nil {
		ref, err := s.evidenceService.Store(ctx, userID, nowUTC, photo)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("failed to store attendance proof: %w", err)
		}
		evidenceRef = &ref
	}

	data := attendance.Attendance{
		UserID:      userID,
		WorkDate:    timeutil.LocalDate(nowUTC, s.loc),
		CheckInAt:   nowUTC,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		EvidenceRef: evidenceRef,
	}

	var created attendance.Attendance
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.UserRepository.Upsert(ctx, req.Identity); err != nil {
			return fmt.Errorf("failed to sync user: %w", err)
		}

		var err error
		created, err = s.AttendanceRepository.Create(ctx, data)
		if err != nil {
			return fmt.Errorf("failed to create attendance record: %w", err)
		}
		return nil
	})
	if err != nil {
		if evidenceRef != nil {
			s.discardEvidence(ctx, *evidenceRef)
		}
		return attendance.AttendanceResponse{}, err
	}

	if created.UserName == nil && req.Identity.DisplayName != "" {
		created.UserName = &req.Identity.DisplayName
	}

	return s.toResponse(ctx, created), nil
}

// CheckOut implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) CheckOut(ctx context.Context, identity user.Identity) (attendance.AttendanceResponse, error) {
	resp, err := s.checkOut(ctx, identity)
	switch {
	case err != nil:
		s.observe(metrics.OpCheckOut, err)
	case resp.ClockSkew:
		s.metrics.ObserveTransition(metrics.OpCheckOut, metrics.OutcomeClockSkew)
	default:
		s.metrics.ObserveTransition(metrics.OpCheckOut, metrics.OutcomeSuccess)
	}
	return resp, err
}

func (s *AttendanceServiceImpl) checkOut(ctx context.Context, identity user.Identity) (attendance.AttendanceResponse, error) {
	if validator.IsEmpty(identity.UserID) {
		return attendance.AttendanceResponse{}, user.ErrIdentityMissing
	}

	nowUTC := s.now().UTC()
	today := timeutil.TodayWindow(nowUTC, s.loc)

	open, err := s.AttendanceRepository.FindOpenForUserInWindow(ctx, identity.UserID, today)
	if err != nil {
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to look up open session: %w", err)
	}
	if open == nil {
		return attendance.AttendanceResponse{}, attendance.ErrNoOpenCheckIn
	}

	// Two concurrent check-outs both land here; the later write wins and the
	// session stays closed either way.
	updated, err := s.AttendanceRepository.Update(ctx, open.ID, attendance.Patch{CheckOutAt: &nowUTC})
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrNoOpenCheckIn
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	if updated.HasClockSkew() {
		slog.WarnContext(ctx, "check-out is not later than check-in",
			"attendance_id", updated.ID,
			"user_id", updated.UserID,
			"check_in", updated.CheckInAt,
			"check_out", nowUTC,
		)
	}

	return s.toResponse(ctx, updated), nil
}

// Correct implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Correct(ctx context.Context, req attendance.CorrectionRequest) (attendance.AttendanceResponse, error) {
	resp, err := s.correct(ctx, req)
	s.observe(metrics.OpCorrect, err)
	return resp, err
}

func (s *AttendanceServiceImpl) correct(ctx context.Context, req attendance.CorrectionRequest) (attendance.AttendanceResponse, error) {
	if req.IsEmpty() {
		return attendance.AttendanceResponse{}, fmt.Errorf("%w: nothing to update", attendance.ErrInvalidArgument)
	}
	if err := req.Validate(); err != nil {
		return attendance.AttendanceResponse{}, err
	}

	var patch attendance.Patch
	if req.CheckIn != nil {
		checkIn, err := timeutil.ParseFlexibleDate(*req.CheckIn, s.loc)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("check_in: %w", err)
		}
		workDate := timeutil.LocalDate(checkIn, s.loc)
		patch.CheckInAt = &checkIn
		patch.WorkDate = &workDate
	}
	if req.CheckOut != nil {
		checkOut, err := timeutil.ParseFlexibleDate(*req.CheckOut, s.loc)
		if err != nil {
			return attendance.AttendanceResponse{}, fmt.Errorf("check_out: %w", err)
		}
		patch.CheckOutAt = &checkOut
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		patch.DisplayName = &name
	}

	current, err := s.findByID(ctx, req.ID)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}

	// Check the order the record would have after the patch
	checkIn := current.CheckInAt
	if patch.CheckInAt != nil {
		checkIn = *patch.CheckInAt
	}
	checkOut := current.CheckOutAt
	if patch.CheckOutAt != nil {
		checkOut = patch.CheckOutAt
	}
	if checkOut != nil && !checkOut.After(checkIn) {
		return attendance.AttendanceResponse{}, attendance.ErrInvalidTimeOrder
	}

	updated, err := s.AttendanceRepository.Update(ctx, current.ID, patch)
	if err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.AttendanceResponse{}, attendance.ErrAttendanceNotFound
		}
		if errors.Is(err, attendance.ErrAlreadyCheckedIn) {
			return attendance.AttendanceResponse{}, err
		}
		return attendance.AttendanceResponse{}, fmt.Errorf("failed to update attendance record: %w", err)
	}

	return s.toResponse(ctx, updated), nil
}

// Get implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Get(ctx context.Context, id string) (attendance.AttendanceResponse, error) {
	data, err := s.findByID(ctx, id)
	if err != nil {
		return attendance.AttendanceResponse{}, err
	}
	return s.toResponse(ctx, *data), nil
}

// Remove implements attendance.AttendanceService.
func (s *AttendanceServiceImpl) Remove(ctx context.Context, id string) error {
	err := s.remove(ctx, id)
	s.observe(metrics.OpRemove, err)
	return err
}

func (s *AttendanceServiceImpl) remove(ctx context.Context, id string) error {
	data, err := s.findByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.AttendanceRepository.Delete(ctx, data.ID); err != nil {
		if errors.Is(err, attendance.ErrAttendanceNotFound) {
			return attendance.ErrAttendanceNotFound
		}
		return fmt.Errorf("failed to delete attendance: %w", err)
	}

	if data.EvidenceRef != nil {
		s.discardEvidence(ctx, *data.EvidenceRef)
	}
	return nil
}

// findByID treats ids that are not UUIDs as unknown records
func (s *AttendanceServiceImpl) findByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	if !validator.IsValidUUID(id) {
		return nil, attendance.ErrAttendanceNotFound
	}

	data, err := s.AttendanceRepository.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance: %w", err)
	}
	if data == nil {
		return nil, attendance.ErrAttendanceNotFound
	}
	return data, nil
}

func (s *AttendanceServiceImpl) toResponse(ctx context.Context, data attendance.Attendance) attendance.AttendanceResponse {
	resp := data.ToResponse(s.loc, timeutil.DateTimeOffsetLayout)
	if data.EvidenceRef != nil {
		url, err := s.evidenceService.URL(ctx, *data.EvidenceRef)
		switch {
		case errors.Is(err, evidence.ErrEvidenceMissing):
			slog.WarnContext(ctx, "attendance proof file is missing", "attendance_id", data.ID, "ref", *data.EvidenceRef)
		case err != nil:
			slog.ErrorContext(ctx, "failed to resolve attendance proof url", "ref", *data.EvidenceRef, "error", err)
		default:
			resp.EvidenceURL = &url
		}
	}
	return resp
}

// discardEvidence removes an uploaded proof photo that no record refers to
func (s *AttendanceServiceImpl) discardEvidence(ctx context.Context, ref string) {
	if err := s.evidenceService.Delete(context.WithoutCancel(ctx), ref); err != nil {
		slog.ErrorContext(ctx, "failed to delete attendance proof", "ref", ref, "error", err)
	}
}

func (s *AttendanceServiceImpl) observe(operation string, err error) {
	s.metrics.ObserveTransition(operation, Outcome(err))
}

// Outcome classifies an operation error for the transitions metric.
// Business rejections are expected traffic, everything else is a fault.
func Outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.As(err, &validationErrs),
		errors.Is(err, attendance.ErrAlreadyCheckedIn),
		errors.Is(err, attendance.ErrAlreadyCheckedOut),
		errors.Is(err, attendance.ErrNoOpenCheckIn),
		errors.Is(err, attendance.ErrEvidenceRequired),
		errors.Is(err, attendance.ErrEvidenceInvalidType),
		errors.Is(err, attendance.ErrEvidenceTooLarge),
		errors.Is(err, attendance.ErrAttendanceNotFound),
		errors.Is(err, attendance.ErrInvalidDate),
		errors.Is(err, attendance.ErrInvalidArgument),
		errors.Is(err, attendance.ErrInvalidTimeOrder),
		errors.Is(err, user.ErrIdentityMissing):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func NewAttendanceService(
	tx database.Transactor,
	attendanceRepo attendance.AttendanceRepository,
	userRepo user.UserRepository,
	evidenceService evidence.EvidenceService,
	m *metrics.Metrics,
	loc *time.Location,
	clock timeutil.Clock,
) attendance.AttendanceService {
	if clock == nil {
		clock = time.Now
	}
	return &AttendanceServiceImpl{
		tx:                   tx,
		AttendanceRepository: attendanceRepo,
		UserRepository:       userRepo,
		evidenceService:      evidenceService,
		metrics:              m,
		loc:                  loc,
		now:                  clock,
	}
}
