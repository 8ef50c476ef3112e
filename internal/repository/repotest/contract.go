// Package repotest holds behaviour shared by every AttendanceRepository
// implementation, run against each of them from their own tests.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/user"
	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/pkg/timeutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Repositories is a fresh, empty set of stores for one subtest.
type Repositories struct {
	Attendance attendance.AttendanceRepository
	User       user.UserRepository
}

var jakarta = time.FixedZone("WIB", 7*60*60)

func newIdentity(t *testing.T, ctx context.Context, repos Repositories, name string) user.Identity {
	t.Helper()
	identity := user.Identity{UserID: uuid.NewString(), DisplayName: name, Role: user.RoleMahasiswa}
	require.NoError(t, repos.User.Upsert(ctx, identity))
	return identity
}

func openRecord(userID string, checkIn time.Time) attendance.Attendance {
	return attendance.Attendance{
		UserID:    userID,
		WorkDate:  timeutil.LocalDate(checkIn, jakarta),
		CheckInAt: checkIn.UTC(),
	}
}

// RunAttendanceRepository exercises repository semantics the services rely
// on. newRepos must return isolated, empty stores.
func RunAttendanceRepository(t *testing.T, newRepos func(t *testing.T) Repositories) {
	ctx := context.Background()
	day := time.Date(2024, 3, 5, 8, 0, 0, 0, jakarta)
	window := timeutil.DayWindow(day, jakarta)

	t.Run("create and find open record with joined name", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice Wonder")
		lat, lon := -6.2, 106.8
		ref := "attendance/2024-03-05/proof.jpg"

		rec := openRecord(alice.UserID, day)
		rec.Latitude, rec.Longitude, rec.EvidenceRef = &lat, &lon, &ref
		created, err := repos.Attendance.Create(ctx, rec)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "Alice Wonder", created.Name())
		assert.True(t, created.IsOpen())

		found, err := repos.Attendance.FindOpenForUserInWindow(ctx, alice.UserID, window)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
		assert.True(t, day.Equal(found.CheckInAt))
		assert.Equal(t, timeutil.LocalDate(day, jakarta), found.WorkDate.UTC())
		require.NotNil(t, found.Latitude)
		assert.InDelta(t, lat, *found.Latitude, 1e-9)
		require.NotNil(t, found.EvidenceRef)
		assert.Equal(t, ref, *found.EvidenceRef)
	})

	t.Run("user ids are opaque strings", func(t *testing.T) {
		repos := newRepos(t)
		numeric := user.Identity{UserID: "42", DisplayName: "Budi", Role: user.RoleMahasiswa}
		require.NoError(t, repos.User.Upsert(ctx, numeric))

		created, err := repos.Attendance.Create(ctx, openRecord(numeric.UserID, day))
		require.NoError(t, err)
		assert.Equal(t, "42", created.UserID)
		assert.Equal(t, "Budi", created.Name())

		found, err := repos.Attendance.FindOpenForUserInWindow(ctx, numeric.UserID, window)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)

		mine, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{UserID: &numeric.UserID, Window: &window})
		require.NoError(t, err)
		assert.Len(t, mine, 1)
	})

	t.Run("second open record on the same day is rejected", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")

		_, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		_, err = repos.Attendance.Create(ctx, openRecord(alice.UserID, day.Add(time.Hour)))
		assert.ErrorIs(t, err, attendance.ErrAlreadyCheckedIn)

		all, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{UserID: &alice.UserID})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("concurrent creates leave exactly one open record", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")

		const workers = 8
		var wg sync.WaitGroup
		errs := make([]error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = repos.Attendance.Create(ctx, openRecord(alice.UserID, day.Add(time.Duration(i)*time.Second)))
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
	})

	t.Run("open record does not leak into other days", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		_, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		next := timeutil.DayWindow(day.AddDate(0, 0, 1), jakarta)
		found, err := repos.Attendance.FindOpenForUserInWindow(ctx, alice.UserID, next)
		require.NoError(t, err)
		assert.Nil(t, found)

		prev := timeutil.DayWindow(day.AddDate(0, 0, -1), jakarta)
		found, err = repos.Attendance.FindOpenForUserInWindow(ctx, alice.UserID, prev)
		require.NoError(t, err)
		assert.Nil(t, found)

		// A stale open record from yesterday does not block today.
		_, err = repos.Attendance.Create(ctx, openRecord(alice.UserID, day.AddDate(0, 0, 1)))
		assert.NoError(t, err)
	})

	t.Run("closed record is reported and frees the open slot", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		created, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		closed, err := repos.Attendance.HasClosedForUserInWindow(ctx, alice.UserID, window)
		require.NoError(t, err)
		assert.False(t, closed)

		checkOut := day.Add(9 * time.Hour).UTC()
		updated, err := repos.Attendance.Update(ctx, created.ID, attendance.Patch{CheckOutAt: &checkOut})
		require.NoError(t, err)
		require.NotNil(t, updated.CheckOutAt)
		assert.True(t, checkOut.Equal(*updated.CheckOutAt))
		assert.Equal(t, "Alice", updated.Name())

		closed, err = repos.Attendance.HasClosedForUserInWindow(ctx, alice.UserID, window)
		require.NoError(t, err)
		assert.True(t, closed)

		found, err := repos.Attendance.FindOpenForUserInWindow(ctx, alice.UserID, window)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("find by id", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		created, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		found, err := repos.Attendance.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, alice.UserID, found.UserID)

		missing, err := repos.Attendance.FindByID(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("filters by name, window and user", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice Wonder")
		bob := newIdentity(t, ctx, repos, "Bob 100%_Sure")
		carol := newIdentity(t, ctx, repos, "Carol ALICEson")

		_, err := repos.Attendance.Create(ctx, openRecord(bob.UserID, day.Add(2*time.Hour)))
		require.NoError(t, err)
		_, err = repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)
		_, err = repos.Attendance.Create(ctx, openRecord(carol.UserID, day.AddDate(0, 0, 1)))
		require.NoError(t, err)

		name := "alice"
		byName, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Name: &name})
		require.NoError(t, err)
		require.Len(t, byName, 2)
		assert.Equal(t, alice.UserID, byName[0].UserID)
		assert.Equal(t, carol.UserID, byName[1].UserID)

		wildcard := "%_"
		literal, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Name: &wildcard})
		require.NoError(t, err)
		require.Len(t, literal, 1)
		assert.Equal(t, bob.UserID, literal[0].UserID)

		byDay, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Window: &window})
		require.NoError(t, err)
		require.Len(t, byDay, 2)
		assert.Equal(t, alice.UserID, byDay[0].UserID, "ordered by check-in")
		assert.Equal(t, bob.UserID, byDay[1].UserID)

		both, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Name: &name, Window: &window})
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, alice.UserID, both[0].UserID)

		mine, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{UserID: &bob.UserID, Window: &window})
		require.NoError(t, err)
		require.Len(t, mine, 1)

		none := "nobody"
		empty, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Name: &none})
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("display name override is used for filtering", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		created, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		override := "Alicia Keys"
		updated, err := repos.Attendance.Update(ctx, created.ID, attendance.Patch{DisplayName: &override})
		require.NoError(t, err)
		assert.Equal(t, "Alicia Keys", updated.Name())

		name := "keys"
		found, err := repos.Attendance.FindByFilters(ctx, attendance.Filter{Name: &name})
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("user name changes are visible through the join", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		created, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		alice.DisplayName = "Alice Married"
		require.NoError(t, repos.User.Upsert(ctx, alice))

		found, err := repos.Attendance.FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "Alice Married", found.Name())
	})

	t.Run("update and delete missing records", func(t *testing.T) {
		repos := newRepos(t)
		now := time.Now().UTC()

		_, err := repos.Attendance.Update(ctx, uuid.NewString(), attendance.Patch{CheckOutAt: &now})
		assert.ErrorIs(t, err, attendance.ErrAttendanceNotFound)

		_, err = repos.Attendance.Update(ctx, uuid.NewString(), attendance.Patch{})
		assert.ErrorIs(t, err, attendance.ErrInvalidArgument)

		assert.ErrorIs(t, repos.Attendance.Delete(ctx, uuid.NewString()), attendance.ErrAttendanceNotFound)
	})

	t.Run("delete removes the record", func(t *testing.T) {
		repos := newRepos(t)
		alice := newIdentity(t, ctx, repos, "Alice")
		created, err := repos.Attendance.Create(ctx, openRecord(alice.UserID, day))
		require.NoError(t, err)

		require.NoError(t, repos.Attendance.Delete(ctx, created.ID))

		found, err := repos.Attendance.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, found)
		assert.ErrorIs(t, repos.Attendance.Delete(ctx, created.ID), attendance.ErrAttendanceNotFound)
	})
}
