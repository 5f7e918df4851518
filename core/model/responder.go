package model

// ResponderKind classifies organizations that can be assigned a case.
type ResponderKind string

const (
	KindHospital   ResponderKind = "HOSPITAL"
	KindRescueTeam ResponderKind = "RESCUE_TEAM"
)

// Availability is the duty state of a responder organization.
type Availability string

const (
	Available   Availability = "AVAILABLE"
	Busy        Availability = "BUSY"
	OffDuty     Availability = "OFF_DUTY"
	Maintenance Availability = "MAINTENANCE"
	Inactive    Availability = "INACTIVE"
)

// ResponderLocation is a responder organization as seen by the dispatch
// core: its position, kind and current availability. Read-only here, the
// directory is the source of truth.
type ResponderLocation struct {
	OrganizationID string        `json:"organization_id"`
	Kind           ResponderKind `json:"kind"`
	Lat            float64       `json:"lat"`
	Lng            float64       `json:"lng"`
	Availability   Availability  `json:"availability"`

	// MemberIDs are the user ids belonging to the organization, used to
	// notify its members directly when a case is assigned to it.
	MemberIDs []string `json:"member_ids,omitempty"`
}

// Assignable reports whether the organization kind can receive cases.
func (r ResponderLocation) Assignable() bool {
	return r.Kind == KindHospital || r.Kind == KindRescueTeam
}
