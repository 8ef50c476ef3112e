package user

import "errors"

var (
	ErrInvalidToken           = errors.New("invalid or expired access token")
	ErrIdentityMissing        = errors.New("authenticated identity missing from request")
	ErrAdminPrivilegeRequired = errors.New("admin privilege required")
)
