package dispatch

import (
	"fmt"

	"github.com/aidline/aidline/core/model"
)

// Config defines settings for the assignment planner.
type Config struct {
	// DefaultRadiusKm bounds the auto-assignment geosearch when the caller
	// does not give a radius.
	DefaultRadiusKm float64 `json:"default_radius_km"`
	// SystemActorID is recorded in the audit trail for automatic
	// assignments performed without a human dispatcher.
	SystemActorID string `json:"system_actor_id"`
	// SeverityRouting maps severity ("1".."4") to the responder kind that
	// should handle it.
	SeverityRouting map[string]model.ResponderKind `json:"severity_routing"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.DefaultRadiusKm == 0 {
		c.DefaultRadiusKm = 10
	}
	if c.SystemActorID == "" {
		c.SystemActorID = "system"
	}
	if len(c.SeverityRouting) == 0 {
		c.SeverityRouting = map[string]model.ResponderKind{
			"1": model.KindHospital,
			"2": model.KindHospital,
			"3": model.KindRescueTeam,
			"4": model.KindRescueTeam,
		}
	}
}

// Validate checks the routing table.
func (c Config) Validate() error {
	if c.DefaultRadiusKm < 0 {
		return fmt.Errorf("default_radius_km must not be negative")
	}
	for sev, kind := range c.SeverityRouting {
		if kind != model.KindHospital && kind != model.KindRescueTeam {
			return fmt.Errorf("severity %s routed to unknown kind %s", sev, kind)
		}
	}
	return nil
}

// kindFor resolves the responder kind handling the given severity.
func (c Config) kindFor(severity int) model.ResponderKind {
	if k, ok := c.SeverityRouting[fmt.Sprintf("%d", severity)]; ok {
		return k
	}
	if severity >= 3 {
		return model.KindRescueTeam
	}
	return model.KindHospital
}
