package attendance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/metrics"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/storage"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/validator"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/repository/memory"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/service/evidence"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var wib = time.FixedZone("WIB", 7*60*60)

var budi = user.Identity{UserID: "user-budi", DisplayName: "Budi Santoso", Role: user.RoleMahasiswa}

// clock is a settable time source shared by the service and the test
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc     attendance.AttendanceService
	store   *memory.Store
	clock   *clock
	metrics *metrics.Metrics
	dir     string
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	evidence evidence.Options
	repo     func(*memory.Store) attendance.AttendanceRepository
}

func withRequiredEvidence() fixtureOption {
	return func(c *fixtureConfig) { c.evidence.Required = true }
}

func withRepository(wrap func(*memory.Store) attendance.AttendanceRepository) fixtureOption {
	return func(c *fixtureConfig) { c.repo = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	cfg := fixtureConfig{repo: func(s *memory.Store) attendance.AttendanceRepository { return s }}
	for _, opt := range opts {
		opt(&cfg)
	}

	dir := t.TempDir()
	fileStorage, err := storage.NewLocalStorage(dir, "http://localhost:8080/uploads")
	require.NoError(t, err)

	store := memory.NewStore()
	m := metrics.New()
	c := &clock{now: localTime(2024, 3, 5, 8, 0)}
	evidenceService := evidence.NewEvidenceService(fileStorage, wib, cfg.evidence, m)

	return &fixture{
		svc:     NewAttendanceService(store, cfg.repo(store), store, evidenceService, m, wib, c.Now),
		store:   store,
		clock:   c,
		metrics: m,
		dir:     dir,
	}
}

func localTime(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, wib)
}

func (f *fixture) recordsFor(t *testing.T, userID string) []attendance.Attendance {
	t.Helper()
	records, err := f.store.FindByFilters(context.Background(), attendance.Filter{UserID: &userID})
	require.NoError(t, err)
	return records
}

func (f *fixture) storedFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	err := filepath.WalkDir(f.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	require.NoError(t, err)
	return files
}

func (f *fixture) transitions(operation, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.Transitions().WithLabelValues(operation, outcome))
}

func photo(t *testing.T) *attendance.Evidence {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 24, 24))))
	return &attendance.Evidence{
		File:        bytes.NewReader(buf.Bytes()),
		Filename:    "selfie.png",
		ContentType: "image/png",
		Size:        int64(buf.Len()),
	}
}

func ptr[T any](v T) *T { return &v }

func TestCheckIn_OpensSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{
		Identity:  budi,
		Latitude:  ptr(-6.2),
		Longitude: ptr(106.8),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, budi.UserID, resp.UserID)
	assert.Equal(t, "Budi Santoso", resp.Name)
	assert.Equal(t, "2024-03-05", resp.WorkDate)
	assert.Equal(t, "2024-03-05 08:00:00+07:00", resp.CheckIn)
	assert.Nil(t, resp.CheckOut)
	assert.Nil(t, resp.EvidenceURL)
	assert.Equal(t, ptr(-6.2), resp.Latitude)
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckIn, metrics.OutcomeSuccess))
}

func TestCheckIn_SecondCallRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)

	f.clock.Set(localTime(2024, 3, 5, 8, 1))
	_, err = f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedIn)

	assert.Len(t, f.recordsFor(t, budi.UserID), 1)
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckIn, metrics.OutcomeRejected))
}

func TestCheckIn_ClosedDayIsTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)
	f.clock.Set(localTime(2024, 3, 5, 17, 0))
	_, err = f.svc.CheckOut(ctx, budi)
	require.NoError(t, err)

	f.clock.Set(localTime(2024, 3, 5, 18, 0))
	_, err = f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedOut)

	// The next local day starts fresh
	f.clock.Set(localTime(2024, 3, 6, 0, 0))
	_, err = f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	assert.NoError(t, err)
	assert.Len(t, f.recordsFor(t, budi.UserID), 2)
}

func TestCheckIn_StaleOpenSessionDoesNotBlockToday(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	yesterday, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)

	f.clock.Set(localTime(2024, 3, 6, 8, 0))
	today, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)
	assert.NotEqual(t, yesterday.ID, today.ID)

	f.clock.Set(localTime(2024, 3, 6, 17, 0))
	closed, err := f.svc.CheckOut(ctx, budi)
	require.NoError(t, err)
	assert.Equal(t, today.ID, closed.ID)

	stale, err := f.svc.Get(ctx, yesterday.ID)
	require.NoError(t, err)
	assert.Nil(t, stale.CheckOut, "yesterday's session is left open")
}

func TestCheckIn_ConcurrentCallsCreateOneRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedIn)
	}
	assert.Equal(t, 1, succeeded)
	assert.Len(t, f.recordsFor(t, budi.UserID), 1)
}

func TestCheckIn_InvalidLocation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{
		Identity: budi,
		Latitude: ptr(95.0),
	})

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)
	fields := validationErrs.ToMap()
	assert.Contains(t, fields, "location")
	assert.Contains(t, fields, "latitude")
	assert.Empty(t, f.recordsFor(t, budi.UserID))
}

func TestCheckIn_Evidence(t *testing.T) {
	t.Run("stored and linked", func(t *testing.T) {
		f := newFixture(t, withRequiredEvidence())

		resp, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{Identity: budi, Evidence: photo(t)})
		require.NoError(t, err)
		require.NotNil(t, resp.EvidenceURL)
		assert.Contains(t, *resp.EvidenceURL, "http://localhost:8080/uploads/attendance/2024-03-05/user-budi-")
		assert.Len(t, f.storedFiles(t), 1)
	})

	t.Run("missing file drops the link", func(t *testing.T) {
		f := newFixture(t, withRequiredEvidence())

		resp, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{Identity: budi, Evidence: photo(t)})
		require.NoError(t, err)
		files := f.storedFiles(t)
		require.Len(t, files, 1)
		require.NoError(t, os.Remove(files[0]))

		got, err := f.svc.Get(context.Background(), resp.ID)
		require.NoError(t, err)
		assert.Nil(t, got.EvidenceURL)
	})

	t.Run("missing when required", func(t *testing.T) {
		f := newFixture(t, withRequiredEvidence())

		_, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{Identity: budi})
		assert.ErrorIs(t, err, attendance.ErrEvidenceRequired)
		assert.Empty(t, f.recordsFor(t, budi.UserID))
	})

	t.Run("not an image", func(t *testing.T) {
		f := newFixture(t, withRequiredEvidence())

		_, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{
			Identity: budi,
			Evidence: &attendance.Evidence{
				File:        bytes.NewReader([]byte("%PDF-1.4 pretending to be a photo")),
				Filename:    "selfie.png",
				ContentType: "image/png",
				Size:        33,
			},
		})
		assert.ErrorIs(t, err, attendance.ErrEvidenceInvalidType)
		assert.Empty(t, f.recordsFor(t, budi.UserID))
		assert.Empty(t, f.storedFiles(t))
	})
}

// failingCreate accepts reads but fails every insert
type failingCreate struct {
	*memory.Store
	err error
}

func (r failingCreate) Create(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	return attendance.Attendance{}, r.err
}

func TestCheckIn_StorageUnavailableRemovesEvidence(t *testing.T) {
	down := fmt.Errorf("%w: connection refused", attendance.ErrStorageUnavailable)
	f := newFixture(t, withRequiredEvidence(), withRepository(func(s *memory.Store) attendance.AttendanceRepository {
		return failingCreate{Store: s, err: down}
	}))

	_, err := f.svc.CheckIn(context.Background(), attendance.CheckInRequest{Identity: budi, Evidence: photo(t)})
	assert.ErrorIs(t, err, attendance.ErrStorageUnavailable)
	assert.Empty(t, f.storedFiles(t), "uploaded proof is removed when the insert fails")
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckIn, metrics.OutcomeError))
}

func TestCheckOut_WithoutOpenSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CheckOut(context.Background(), budi)
	assert.ErrorIs(t, err, attendance.ErrNoOpenCheckIn)
	assert.Empty(t, f.recordsFor(t, budi.UserID))

	_, err = f.svc.CheckOut(context.Background(), user.Identity{})
	assert.ErrorIs(t, err, user.ErrIdentityMissing)
}

func TestCheckOut_ClosesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	opened, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)

	f.clock.Set(localTime(2024, 3, 5, 17, 0))
	closed, err := f.svc.CheckOut(ctx, budi)
	require.NoError(t, err)

	assert.Equal(t, opened.ID, closed.ID)
	require.NotNil(t, closed.CheckOut)
	assert.Equal(t, "2024-03-05 17:00:00+07:00", *closed.CheckOut)
	assert.False(t, closed.ClockSkew)

	_, err = f.svc.CheckOut(ctx, budi)
	assert.ErrorIs(t, err, attendance.ErrNoOpenCheckIn)
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckOut, metrics.OutcomeSuccess))
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckOut, metrics.OutcomeRejected))
}

func TestCheckOut_ClockSkewIsFlagged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
	require.NoError(t, err)

	// Host clock stepped back a minute
	f.clock.Set(localTime(2024, 3, 5, 7, 59))
	closed, err := f.svc.CheckOut(ctx, budi)
	require.NoError(t, err)

	assert.True(t, closed.ClockSkew)
	require.NotNil(t, closed.CheckOut)
	assert.Equal(t, "2024-03-05 07:59:00+07:00", *closed.CheckOut)
	assert.Equal(t, 1.0, f.transitions(metrics.OpCheckOut, metrics.OutcomeClockSkew))
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()

	open := func(t *testing.T, f *fixture) attendance.AttendanceResponse {
		t.Helper()
		resp, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi})
		require.NoError(t, err)
		return resp
	}

	t.Run("check-out before check-in is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.clock.Set(localTime(2024, 1, 2, 9, 0))
		rec := open(t, f)

		_, err := f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, CheckOut: ptr("2024-01-01 08:00:00")})
		assert.ErrorIs(t, err, attendance.ErrInvalidTimeOrder)

		unchanged, err := f.svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Nil(t, unchanged.CheckOut)
	})

	t.Run("equal instants are rejected", func(t *testing.T) {
		f := newFixture(t)
		rec := open(t, f)

		_, err := f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, CheckOut: ptr("2024-03-05T08:00:00+07:00")})
		assert.ErrorIs(t, err, attendance.ErrInvalidTimeOrder)
	})

	t.Run("moves check-in and recomputes the work date", func(t *testing.T) {
		f := newFixture(t)
		rec := open(t, f)

		resp, err := f.svc.Correct(ctx, attendance.CorrectionRequest{
			ID:       rec.ID,
			CheckIn:  ptr("2024-03-04T23:30:00Z"),
			CheckOut: ptr("2024-03-05 16:00"),
		})
		require.NoError(t, err)
		assert.Equal(t, "2024-03-05 06:30:00+07:00", resp.CheckIn)
		assert.Equal(t, "2024-03-05", resp.WorkDate)
		require.NotNil(t, resp.CheckOut)
		assert.Equal(t, "2024-03-05 16:00:00+07:00", *resp.CheckOut)

		resp, err = f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, CheckIn: ptr("2024-03-04 09:00")})
		require.NoError(t, err)
		assert.Equal(t, "2024-03-04", resp.WorkDate)
	})

	t.Run("rename overrides joined name", func(t *testing.T) {
		f := newFixture(t)
		rec := open(t, f)

		resp, err := f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, Name: ptr("  Budi S.  ")})
		require.NoError(t, err)
		assert.Equal(t, "Budi S.", resp.Name)
		assert.Equal(t, 1.0, f.transitions(metrics.OpCorrect, metrics.OutcomeSuccess))
	})

	t.Run("rejections", func(t *testing.T) {
		f := newFixture(t)
		rec := open(t, f)

		_, err := f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID})
		assert.ErrorIs(t, err, attendance.ErrInvalidArgument)

		_, err = f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, CheckIn: ptr("yesterday")})
		assert.ErrorIs(t, err, attendance.ErrInvalidDate)

		_, err = f.svc.Correct(ctx, attendance.CorrectionRequest{ID: "5e1f6a7c-4a0b-4d3e-9c1a-2b3c4d5e6f70", Name: ptr("x")})
		assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)

		_, err = f.svc.Correct(ctx, attendance.CorrectionRequest{ID: "42", Name: ptr("x")})
		assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)

		_, err = f.svc.Correct(ctx, attendance.CorrectionRequest{ID: rec.ID, Name: ptr("   ")})
		var validationErrs validator.ValidationErrors
		assert.ErrorAs(t, err, &validationErrs)
	})
}

func TestRemove(t *testing.T) {
	f := newFixture(t, withRequiredEvidence())
	ctx := context.Background()

	rec, err := f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi, Evidence: photo(t)})
	require.NoError(t, err)
	require.Len(t, f.storedFiles(t), 1)

	require.NoError(t, f.svc.Remove(ctx, rec.ID))
	assert.Empty(t, f.recordsFor(t, budi.UserID))
	assert.Empty(t, f.storedFiles(t))

	assert.ErrorIs(t, f.svc.Remove(ctx, rec.ID), attendance.ErrAttendanceNotFound)
	_, err = f.svc.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)

	// A removed session no longer blocks the day
	_, err = f.svc.CheckIn(ctx, attendance.CheckInRequest{Identity: budi, Evidence: photo(t)})
	assert.NoError(t, err)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, metrics.OutcomeSuccess, Outcome(nil))
	assert.Equal(t, metrics.OutcomeRejected, Outcome(fmt.Errorf("wrapped: %w", attendance.ErrAlreadyCheckedIn)))
	assert.Equal(t, metrics.OutcomeRejected, Outcome(validator.ValidationErrors{{Field: "x", Message: "y"}}))
	assert.Equal(t, metrics.OutcomeRejected, Outcome(timeutil.ErrInvalidDate))
	assert.Equal(t, metrics.OutcomeError, Outcome(attendance.ErrStorageUnavailable))
	assert.Equal(t, metrics.OutcomeError, Outcome(errors.New("boom")))
}
