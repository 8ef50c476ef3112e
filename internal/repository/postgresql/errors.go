package postgresql

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/E-PPAW-TI503P-2025/PRKPAW-20230140217/internal/domain/attendance"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation       = "23505"
	openPerDayConstraint  = "attendances_one_open_per_day"
	adminShutdown         = "57P01"
	crashShutdown         = "57P02"
	cannotConnectNow      = "57P03"
	tooManyConnections    = "53300"
	connectionClassPrefix = "08"
)

// translateError maps driver failures onto domain errors. A second open
// session for the same day becomes ErrAlreadyCheckedIn, lost or refused
// connections become ErrStorageUnavailable, and everything else is returned
// as is.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == uniqueViolation && pgErr.ConstraintName == openPerDayConstraint:
			return attendance.ErrAlreadyCheckedIn
		case strings.HasPrefix(pgErr.Code, connectionClassPrefix),
			pgErr.Code == adminShutdown,
			pgErr.Code == crashShutdown,
			pgErr.Code == cannotConnectNow,
			pgErr.Code == tooManyConnections:
			return fmt.Errorf("%w: %v", attendance.ErrStorageUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connectErr) || errors.As(err, &netErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", attendance.ErrStorageUnavailable, err)
	}

	return err
}
