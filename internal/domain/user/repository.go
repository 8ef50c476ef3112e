package user

import (
	"context"
)

// UserRepository mirrors identities issued by the identity provider so that
// attendance queries can join the current display name.
type UserRepository interface {
	Upsert(ctx context.Context, identity Identity) error
}
