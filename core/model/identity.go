package model

// Role is a broadcast audience category.
type Role string

const (
	RoleReporter      Role = "REPORTER"
	RoleCommandCenter Role = "COMMAND_CENTER"
	RoleHospital      Role = "HOSPITAL"
	RoleRescueTeam    Role = "RESCUE_TEAM"
	RoleAdmin         Role = "ADMIN"
)

// ResponderRoles are the audiences notified about every case event.
var ResponderRoles = []Role{RoleCommandCenter, RoleHospital, RoleRescueTeam}

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleReporter, RoleCommandCenter, RoleHospital, RoleRescueTeam, RoleAdmin:
		return true
	}
	return false
}

// Identity is the verified subject behind a connection. It is immutable
// for the life of the connection and re-derived on every handshake.
type Identity struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}
