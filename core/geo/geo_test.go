package geo

import (
	"context"
	"math"
	"testing"

	"github.com/aidline/aidline/core/model"
	infrastore "github.com/aidline/aidline/infra/store"
)

func TestHaversineKnownDistance(t *testing.T) {
	// Bangkok city center to Don Mueang airport, roughly 21 km.
	d := Haversine(13.7563, 100.5018, 13.9126, 100.6068)
	if d < 20 || d > 22 {
		t.Fatalf("unexpected distance %f", d)
	}
}

func TestHaversineZero(t *testing.T) {
	if d := Haversine(13.7563, 100.5018, 13.7563, 100.5018); d != 0 {
		t.Fatalf("expected zero distance, got %f", d)
	}
}

func newDirectory(rs ...model.ResponderLocation) *infrastore.MemoryStore {
	s := infrastore.NewMemoryStore()
	for _, r := range rs {
		s.PutResponder(context.Background(), r)
	}
	return s
}

func TestFindNearbyFiltersAndOrders(t *testing.T) {
	// Offsets of 0.01 degree latitude are roughly 1.11 km.
	dir := newDirectory(
		model.ResponderLocation{OrganizationID: "org-far", Kind: model.KindRescueTeam, Lat: 13.83, Lng: 100.5018, Availability: model.Available},
		model.ResponderLocation{OrganizationID: "org-near", Kind: model.KindRescueTeam, Lat: 13.7663, Lng: 100.5018, Availability: model.Available},
		model.ResponderLocation{OrganizationID: "org-busy", Kind: model.KindRescueTeam, Lat: 13.7600, Lng: 100.5018, Availability: model.Busy},
		model.ResponderLocation{OrganizationID: "org-hospital", Kind: model.KindHospital, Lat: 13.7600, Lng: 100.5018, Availability: model.Available},
	)
	got, err := FindNearby(context.Background(), dir, Point{Lat: 13.7563, Lng: 100.5018}, 10, model.KindRescueTeam)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("candidates: got %d want 2", len(got))
	}
	if got[0].OrganizationID != "org-near" || got[1].OrganizationID != "org-far" {
		t.Fatalf("wrong order: %+v", got)
	}
	if got[0].DistanceKm >= got[1].DistanceKm {
		t.Fatalf("distances not ascending: %+v", got)
	}
}

func TestFindNearbyRadiusCut(t *testing.T) {
	dir := newDirectory(
		model.ResponderLocation{OrganizationID: "org-out", Kind: model.KindHospital, Lat: 14.8, Lng: 100.5018, Availability: model.Available},
	)
	got, err := FindNearby(context.Background(), dir, Point{Lat: 13.7563, Lng: 100.5018}, 10, model.KindHospital)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestFindNearbyTieBreakByOrganizationID(t *testing.T) {
	dir := newDirectory(
		model.ResponderLocation{OrganizationID: "org-b", Kind: model.KindHospital, Lat: 13.7663, Lng: 100.5018, Availability: model.Available},
		model.ResponderLocation{OrganizationID: "org-a", Kind: model.KindHospital, Lat: 13.7663, Lng: 100.5018, Availability: model.Available},
	)
	got, err := FindNearby(context.Background(), dir, Point{Lat: 13.7563, Lng: 100.5018}, 10, model.KindHospital)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	if len(got) != 2 || got[0].OrganizationID != "org-a" {
		t.Fatalf("tie-break order wrong: %+v", got)
	}
}

func TestFindNearbyPrefixStable(t *testing.T) {
	all := []model.ResponderLocation{
		{OrganizationID: "org-1", Kind: model.KindRescueTeam, Lat: 13.7663, Lng: 100.5018, Availability: model.Available},
		{OrganizationID: "org-2", Kind: model.KindRescueTeam, Lat: 13.7763, Lng: 100.5018, Availability: model.Available},
		{OrganizationID: "org-3", Kind: model.KindRescueTeam, Lat: 13.7963, Lng: 100.5018, Availability: model.Available},
	}
	p := Point{Lat: 13.7563, Lng: 100.5018}
	full, err := FindNearby(context.Background(), newDirectory(all...), p, 50, model.KindRescueTeam)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	trimmed, err := FindNearby(context.Background(), newDirectory(all[:2]...), p, 50, model.KindRescueTeam)
	if err != nil {
		t.Fatalf("FindNearby: %v", err)
	}
	for i := range trimmed {
		if trimmed[i] != full[i] {
			t.Fatalf("removing the farthest changed relative order: %+v vs %+v", trimmed, full[:2])
		}
	}
}

func TestSummary(t *testing.T) {
	mean, std := Summary([]Candidate{{DistanceKm: 2}, {DistanceKm: 4}})
	if mean != 3 {
		t.Fatalf("mean: got %f want 3", mean)
	}
	if math.Abs(std-math.Sqrt2) > 1e-9 {
		t.Fatalf("std: got %f want sqrt(2)", std)
	}
	if m, s := Summary(nil); m != 0 || s != 0 {
		t.Fatalf("empty summary should be zeros")
	}
}
