// Package memory is an in-process attendance store for development and tests.
// It enforces the same one-open-session-per-day rule as the Postgres schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/google/uuid"
)

type openKey struct {
	userID   string
	workDate time.Time
}

type Store struct {
	mu          sync.RWMutex
	attendances map[string]attendance.Attendance
	open        map[openKey]string
	users       map[string]user.Identity
	now         timeutil.Clock
}

func NewStore() *Store {
	return &Store{
		attendances: make(map[string]attendance.Attendance),
		open:        make(map[openKey]string),
		users:       make(map[string]user.Identity),
		now:         time.Now,
	}
}

// Upsert implements user.UserRepository.
func (s *Store) Upsert(ctx context.Context, identity user.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.users[identity.UserID]; ok && identity.DisplayName == "" {
		identity.DisplayName = existing.DisplayName
	}
	if identity.Role == "" {
		identity.Role = user.RoleMahasiswa
	}
	s.users[identity.UserID] = identity
	return nil
}

// WithTransaction implements database.Transactor. Each store call is already
// atomic, so fn simply runs under the caller's context.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Create implements attendance.AttendanceRepository.
func (s *Store) Create(ctx context.Context, newAttendance attendance.Attendance) (attendance.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[newAttendance.UserID]; !ok {
		return attendance.Attendance{}, fmt.Errorf("failed to create attendance: unknown user %s", newAttendance.UserID)
	}

	key := openKey{userID: newAttendance.UserID, workDate: dateKey(newAttendance.WorkDate)}
	if newAttendance.CheckOutAt == nil {
		if _, taken := s.open[key]; taken {
			return attendance.Attendance{}, attendance.ErrAlreadyCheckedIn
		}
	}

	now := s.now().UTC()
	rec := clone(newAttendance)
	rec.ID = uuid.NewString()
	rec.WorkDate = key.workDate
	rec.CheckInAt = rec.CheckInAt.UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.attendances[rec.ID] = rec
	if rec.CheckOutAt == nil {
		s.open[key] = rec.ID
	}

	return s.withName(rec), nil
}

// FindOpenForUserInWindow implements attendance.AttendanceRepository.
func (s *Store) FindOpenForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (*attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *attendance.Attendance
	for _, rec := range s.attendances {
		if rec.UserID != userID || !rec.IsOpen() || !w.Contains(rec.CheckInAt) {
			continue
		}
		if latest == nil || rec.CheckInAt.After(latest.CheckInAt) {
			found := s.withName(rec)
			latest = &found
		}
	}

	return latest, nil
}

// HasClosedForUserInWindow implements attendance.AttendanceRepository.
func (s *Store) HasClosedForUserInWindow(ctx context.Context, userID string, w timeutil.Window) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.attendances {
		if rec.UserID == userID && !rec.IsOpen() && w.Contains(rec.CheckInAt) {
			return true, nil
		}
	}

	return false, nil
}

// FindByID implements attendance.AttendanceRepository.
func (s *Store) FindByID(ctx context.Context, id string) (*attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.attendances[id]
	if !ok {
		return nil, nil
	}

	found := s.withName(rec)
	return &found, nil
}

// FindByFilters implements attendance.AttendanceRepository.
func (s *Store) FindByFilters(ctx context.Context, filter attendance.Filter) ([]attendance.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var needle string
	if filter.Name != nil {
		needle = strings.ToLower(*filter.Name)
	}

	result := []attendance.Attendance{}
	for _, rec := range s.attendances {
		if filter.UserID != nil && rec.UserID != *filter.UserID {
			continue
		}
		if filter.Window != nil && !filter.Window.Contains(rec.CheckInAt) {
			continue
		}

		named := s.withName(rec)
		if filter.Name != nil && !strings.Contains(strings.ToLower(named.Name()), needle) {
			continue
		}
		result = append(result, named)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CheckInAt.Equal(result[j].CheckInAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CheckInAt.Before(result[j].CheckInAt)
	})

	return result, nil
}

// Update implements attendance.AttendanceRepository.
func (s *Store) Update(ctx context.Context, id string, patch attendance.Patch) (attendance.Attendance, error) {
	if patch.IsEmpty() {
		return attendance.Attendance{}, fmt.Errorf("%w: no updatable fields provided for attendance update", attendance.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attendances[id]
	if !ok {
		return attendance.Attendance{}, attendance.ErrAttendanceNotFound
	}

	updated := clone(rec)
	if patch.CheckInAt != nil {
		updated.CheckInAt = patch.CheckInAt.UTC()
	}
	if patch.CheckOutAt != nil {
		checkOut := patch.CheckOutAt.UTC()
		updated.CheckOutAt = &checkOut
	}
	if patch.WorkDate != nil {
		updated.WorkDate = dateKey(*patch.WorkDate)
	}
	if patch.DisplayName != nil {
		name := *patch.DisplayName
		updated.DisplayName = &name
	}
	updated.UpdatedAt = s.now().UTC()

	oldKey := openKey{userID: rec.UserID, workDate: rec.WorkDate}
	newKey := openKey{userID: updated.UserID, workDate: updated.WorkDate}
	if updated.IsOpen() {
		if owner, taken := s.open[newKey]; taken && owner != id {
			return attendance.Attendance{}, attendance.ErrAlreadyCheckedIn
		}
	}

	if rec.IsOpen() {
		delete(s.open, oldKey)
	}
	if updated.IsOpen() {
		s.open[newKey] = id
	}
	s.attendances[id] = updated

	return s.withName(updated), nil
}

// Delete implements attendance.AttendanceRepository.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.attendances[id]
	if !ok {
		return attendance.ErrAttendanceNotFound
	}

	if rec.IsOpen() {
		delete(s.open, openKey{userID: rec.UserID, workDate: rec.WorkDate})
	}
	delete(s.attendances, id)

	return nil
}

// withName attaches the current user name, mirroring the users join.
// Callers hold s.mu.
func (s *Store) withName(rec attendance.Attendance) attendance.Attendance {
	out := clone(rec)
	if u, ok := s.users[rec.UserID]; ok {
		name := u.DisplayName
		out.UserName = &name
	}
	return out
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func clone(a attendance.Attendance) attendance.Attendance {
	out := a
	out.CheckOutAt = copyPtr(a.CheckOutAt)
	out.Latitude = copyPtr(a.Latitude)
	out.Longitude = copyPtr(a.Longitude)
	out.EvidenceRef = copyPtr(a.EvidenceRef)
	out.DisplayName = copyPtr(a.DisplayName)
	out.UserName = copyPtr(a.UserName)
	return out
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
