package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aidline/aidline/core/lifecycle"
	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/registry"
	"github.com/aidline/aidline/core/router"
)

// fakeService records calls and returns canned cases.
type fakeService struct {
	calls []string
	err   error
}

func (f *fakeService) answer(action string, status model.CaseStatus) (*model.Case, error) {
	f.calls = append(f.calls, action)
	if f.err != nil {
		return nil, f.err
	}
	return &model.Case{ID: "case-1", Status: status}, nil
}

func (f *fakeService) Intake(_ context.Context, _ string, _ int, _ model.Location) (*model.Case, error) {
	return f.answer("report", model.StatusPending)
}

func (f *fakeService) AutoAssign(_ context.Context, _ string, _ float64) (*model.Case, error) {
	return f.answer("auto_assign", model.StatusAssigned)
}

func (f *fakeService) ManualAssign(_ context.Context, _, _, _ string) (*model.Case, error) {
	return f.answer("assign", model.StatusAssigned)
}

func (f *fakeService) Start(_ context.Context, _, _ string) (*model.Case, error) {
	return f.answer("start", model.StatusInProgress)
}

func (f *fakeService) Complete(_ context.Context, _, _ string) (*model.Case, error) {
	return f.answer("complete", model.StatusCompleted)
}

func (f *fakeService) Cancel(_ context.Context, _, _, _ string) (*model.Case, error) {
	return f.answer("cancel", model.StatusCancelled)
}

func newCommandGateway(t *testing.T, mc *mockClient, svc CaseService, ids staticVerifier) (*Gateway, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	gw, err := NewGateway(Config{Broker: "tcp://localhost:1883", ClientID: "coordinator"}, reg, ids, svc)
	if err != nil {
		t.Fatalf("gateway: %v", err)
	}
	return gw, reg
}

func lastEnvelope(t *testing.T, mc *mockClient) (string, map[string]any) {
	t.Helper()
	if len(mc.published) == 0 {
		t.Fatalf("no publishes")
	}
	var env struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	last := mc.published[len(mc.published)-1]
	if err := json.Unmarshal(last.payload, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env.Event, env.Payload
}

func TestGateway_RequestSubscribedWithService(t *testing.T) {
	mc := withMockClient(t)
	newCommandGateway(t, mc, &fakeService{}, staticVerifier{})
	if len(mc.subscribed) != 3 || mc.subscribed[2].topic != requestTopic {
		t.Fatalf("request topic not subscribed: %+v", mc.subscribed)
	}
}

func TestGateway_ReportCommand(t *testing.T) {
	mc := withMockClient(t)
	svc := &fakeService{}
	gw, _ := newCommandGateway(t, mc, svc, staticVerifier{
		"tok-1": {UserID: "user-1", Role: model.RoleReporter},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-1","credential":"tok-1"}`)})
	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"conn-1","action":"report","severity":3,"location":{"lat":13.75,"lng":100.5}}`)})

	if len(svc.calls) != 1 || svc.calls[0] != "report" {
		t.Fatalf("expected report call, got %v", svc.calls)
	}
	event, payload := lastEnvelope(t, mc)
	if event != "case.ack" {
		t.Fatalf("expected case.ack, got %s", event)
	}
	if payload["caseId"] != "case-1" || payload["status"] != "PENDING" {
		t.Fatalf("unexpected ack payload: %v", payload)
	}
}

func TestGateway_AssignRequiresDispatcher(t *testing.T) {
	mc := withMockClient(t)
	svc := &fakeService{}
	gw, _ := newCommandGateway(t, mc, svc, staticVerifier{
		"tok-rep": {UserID: "user-1", Role: model.RoleReporter},
		"tok-cc":  {UserID: "op-1", Role: model.RoleCommandCenter},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-rep","credential":"tok-rep"}`)})
	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-cc","credential":"tok-cc"}`)})

	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"conn-rep","action":"assign","case_id":"case-1","organization_id":"org-1"}`)})
	if len(svc.calls) != 0 {
		t.Fatalf("reporter must not assign")
	}
	event, payload := lastEnvelope(t, mc)
	if event != router.EventError || payload["reason"] != "forbidden" {
		t.Fatalf("expected forbidden error, got %s %v", event, payload)
	}

	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"conn-cc","action":"assign","case_id":"case-1","organization_id":"org-1"}`)})
	if len(svc.calls) != 1 || svc.calls[0] != "assign" {
		t.Fatalf("expected assign call, got %v", svc.calls)
	}
}

func TestGateway_RequestFromUnknownConnection(t *testing.T) {
	mc := withMockClient(t)
	svc := &fakeService{}
	gw, _ := newCommandGateway(t, mc, svc, staticVerifier{})

	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"ghost","action":"report"}`)})
	if len(svc.calls) != 0 {
		t.Fatalf("unconnected client must not reach the service")
	}
	event, payload := lastEnvelope(t, mc)
	if event != router.EventError || payload["reason"] != "not connected" {
		t.Fatalf("expected not connected error, got %s %v", event, payload)
	}
}

func TestGateway_RequestErrorForwarded(t *testing.T) {
	mc := withMockClient(t)
	svc := &fakeService{err: &lifecycle.InvalidTransitionError{From: model.StatusCompleted, To: model.StatusAssigned}}
	gw, _ := newCommandGateway(t, mc, svc, staticVerifier{
		"tok-cc": {UserID: "op-1", Role: model.RoleCommandCenter},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-cc","credential":"tok-cc"}`)})
	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"conn-cc","action":"auto_assign","case_id":"case-1"}`)})

	event, payload := lastEnvelope(t, mc)
	if event != router.EventError {
		t.Fatalf("expected error event, got %s", event)
	}
	if payload["reason"] != "invalid transition: current=COMPLETED requested=ASSIGNED" {
		t.Fatalf("unexpected reason: %v", payload["reason"])
	}
}

func TestGateway_UnknownAction(t *testing.T) {
	mc := withMockClient(t)
	svc := &fakeService{}
	gw, _ := newCommandGateway(t, mc, svc, staticVerifier{
		"tok-1": {UserID: "user-1", Role: model.RoleReporter},
	})

	gw.onHello(nil, mockMessage{[]byte(`{"client_id":"conn-1","credential":"tok-1"}`)})
	gw.onRequest(nil, mockMessage{[]byte(`{"client_id":"conn-1","action":"teleport"}`)})

	if len(svc.calls) != 0 {
		t.Fatalf("unknown action must not reach the service")
	}
	event, payload := lastEnvelope(t, mc)
	if event != router.EventError || payload["reason"] != "unknown action" {
		t.Fatalf("expected unknown action error, got %s %v", event, payload)
	}
}
