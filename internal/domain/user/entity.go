package user

type Role string

const (
	RoleAdmin     Role = "admin"     // Sees and corrects every attendance record
	RoleMahasiswa Role = "mahasiswa" // Records their own attendance
)

// Identity is the authenticated caller as supplied by the identity provider.
// Nothing here is verified again downstream.
type Identity struct {
	UserID      string
	DisplayName string
	Role        Role
}

// IsAdmin checks if the caller may view all users and apply corrections
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
