// Package router fans out named events to the right audience. Call sites
// express who should know (a user, a set of roles, the parties of a case),
// never which transport carries the message.
package router

import (
	"context"

	"github.com/aidline/aidline/core/logger"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/registry"
	"github.com/aidline/aidline/core/store"
	"github.com/aidline/aidline/internal/eventbus"
)

// Event names delivered to clients.
const (
	EventCaseCreated   = "case.created"
	EventStatusChanged = "case.status-changed"
	EventError         = "error"
)

// CaseCreatedPayload is the wire shape of a case.created event.
type CaseCreatedPayload struct {
	ID       string         `json:"id"`
	Severity int            `json:"severity"`
	Location model.Location `json:"location"`
}

// StatusChangedPayload is the wire shape of a case.status-changed event.
type StatusChangedPayload struct {
	CaseID                 string           `json:"caseId"`
	FromStatus             model.CaseStatus `json:"fromStatus"`
	ToStatus               model.CaseStatus `json:"toStatus"`
	AssignedOrganizationID string           `json:"assignedOrganizationId,omitempty"`
}

// Router resolves audiences through the connection registry and delivers
// best-effort: absent users receive nothing, individual send failures are
// logged and swallowed.
type Router struct {
	reg *registry.Registry
	dir store.ResponderDirectory
	bus eventbus.EventBus
	log logger.Logger
}

// New creates a Router. The directory resolves assigned-organization
// members for targeted notification; bus may be nil when no in-process
// subscriber (metrics collector) is wired.
func New(reg *registry.Registry, dir store.ResponderDirectory, bus eventbus.EventBus, log logger.Logger) *Router {
	return &Router{reg: reg, dir: dir, bus: bus, log: log}
}

// SendToUser delivers the event to every live connection of one user.
// A user with zero connections silently receives nothing.
func (r *Router) SendToUser(userID, event string, payload any) {
	for _, c := range r.reg.ConnsForUser(userID) {
		r.deliver(c, event, payload)
	}
}

// SendToRoles delivers the event once per connection registered under any
// of the given roles. Connections are deduplicated by id.
func (r *Router) SendToRoles(roles []model.Role, event string, payload any) {
	seen := make(map[string]struct{})
	for _, role := range roles {
		for _, c := range r.reg.ConnsForRole(role) {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			seen[c.ID()] = struct{}{}
			r.deliver(c, event, payload)
		}
	}
}

// BroadcastCaseCreated announces a new case to all responder roles.
func (r *Router) BroadcastCaseCreated(c *model.Case) {
	p := CaseCreatedPayload{ID: c.ID, Severity: c.Severity, Location: c.Location}
	r.SendToRoles(model.ResponderRoles, EventCaseCreated, p)
	r.publish(EventCaseCreated, c, "")
}

// BroadcastStatusChanged announces a committed transition to the responder
// roles, the reporting user and, when an organization is assigned, each of
// its members.
func (r *Router) BroadcastStatusChanged(ctx context.Context, c *model.Case, prev model.CaseStatus) {
	p := StatusChangedPayload{
		CaseID:                 c.ID,
		FromStatus:             prev,
		ToStatus:               c.Status,
		AssignedOrganizationID: c.AssignedOrganizationID,
	}
	r.SendToRoles(model.ResponderRoles, EventStatusChanged, p)
	if c.ReporterID != "" {
		r.SendToUser(c.ReporterID, EventStatusChanged, p)
	}
	if c.AssignedOrganizationID != "" {
		org, err := r.dir.Organization(ctx, c.AssignedOrganizationID)
		if err != nil {
			r.log.Warnf("resolve organization %s: %v", c.AssignedOrganizationID, err)
		} else {
			for _, uid := range org.MemberIDs {
				r.SendToUser(uid, EventStatusChanged, p)
			}
		}
	}
	r.publish(EventStatusChanged, c, prev)
}

func (r *Router) deliver(c registry.Conn, event string, payload any) {
	if err := c.Send(event, payload); err != nil {
		// Best-effort contract: a connection dropping mid-broadcast is
		// expected, not an error.
		r.log.Debugf("send %s to %s: %v", event, c.ID(), err)
	}
}

func (r *Router) publish(event string, c *model.Case, prev model.CaseStatus) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(eventbus.CaseEvent{
		Name:       event,
		CaseID:     c.ID,
		Status:     c.Status,
		PrevStatus: prev,
		Severity:   c.Severity,
		AssignedTo: c.AssignedOrganizationID,
	})
}
