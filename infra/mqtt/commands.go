package mqtt

import (
	"context"
	"encoding/json"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/router"
)

const requestTopic = "aidline/case/request"

// CaseService is the command surface clients reach through the gateway.
// The assignment planner implements it.
type CaseService interface {
	Intake(ctx context.Context, reporterID string, severity int, loc model.Location) (*model.Case, error)
	AutoAssign(ctx context.Context, caseID string, radiusKm float64) (*model.Case, error)
	ManualAssign(ctx context.Context, caseID, organizationID, actorID string) (*model.Case, error)
	Start(ctx context.Context, caseID, actorID string) (*model.Case, error)
	Complete(ctx context.Context, caseID, actorID string) (*model.Case, error)
	Cancel(ctx context.Context, caseID, actorID, reason string) (*model.Case, error)
}

type caseRequest struct {
	ClientID       string         `json:"client_id"`
	Action         string         `json:"action"`
	Severity       int            `json:"severity,omitempty"`
	Location       model.Location `json:"location,omitempty"`
	CaseID         string         `json:"case_id,omitempty"`
	OrganizationID string         `json:"organization_id,omitempty"`
	RadiusKm       float64        `json:"radius_km,omitempty"`
	Reason         string         `json:"reason,omitempty"`
}

type caseAck struct {
	Action string           `json:"action"`
	CaseID string           `json:"caseId"`
	Status model.CaseStatus `json:"status"`
}

// onRequest handles a case command from a registered client. The sender must
// have completed a handshake; its identity decides the actor and what it may
// do. Every request is answered on the sender's events topic, either with a
// case.ack or an error event.
func (g *Gateway) onRequest(_ paho.Client, msg paho.Message) {
	var req caseRequest
	if err := json.Unmarshal(msg.Payload(), &req); err != nil {
		g.logger.Errorf("failed to decode case request: %v", err)
		return
	}
	if req.ClientID == "" {
		g.logger.Errorf("case request without client_id ignored")
		return
	}
	conn, ok := g.reg.Conn(req.ClientID)
	if !ok {
		g.publish(req.ClientID, router.EventError, map[string]string{"reason": "not connected"})
		return
	}
	actor := conn.Identity()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		c   *model.Case
		err error
	)
	switch req.Action {
	case "report":
		c, err = g.svc.Intake(ctx, actor.UserID, req.Severity, req.Location)
	case "auto_assign":
		if !dispatcherRole(actor.Role) {
			g.publish(req.ClientID, router.EventError, map[string]string{"reason": "forbidden"})
			return
		}
		c, err = g.svc.AutoAssign(ctx, req.CaseID, req.RadiusKm)
	case "assign":
		if !dispatcherRole(actor.Role) {
			g.publish(req.ClientID, router.EventError, map[string]string{"reason": "forbidden"})
			return
		}
		c, err = g.svc.ManualAssign(ctx, req.CaseID, req.OrganizationID, actor.UserID)
	case "start":
		c, err = g.svc.Start(ctx, req.CaseID, actor.UserID)
	case "complete":
		c, err = g.svc.Complete(ctx, req.CaseID, actor.UserID)
	case "cancel":
		c, err = g.svc.Cancel(ctx, req.CaseID, actor.UserID, req.Reason)
	default:
		g.publish(req.ClientID, router.EventError, map[string]string{"reason": "unknown action"})
		return
	}
	if err != nil {
		g.logger.Warnf("case request %s from %s failed: %v", req.Action, actor.UserID, err)
		g.publish(req.ClientID, router.EventError, map[string]string{"reason": err.Error()})
		return
	}
	g.publish(req.ClientID, "case.ack", caseAck{Action: req.Action, CaseID: c.ID, Status: c.Status})
}

// dispatcherRole reports whether the role may assign cases.
func dispatcherRole(r model.Role) bool {
	return r == model.RoleCommandCenter || r == model.RoleAdmin
}
