// Package geo implements nearest-responder search over great-circle
// distances. Results feed assignment decisions, so ordering is strict:
// ascending distance with ties broken by organization id.
package geo

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/aidline/aidline/core/model"
	"github.com/aidline/aidline/core/store"
)

// earthRadiusKm is the mean Earth radius used by the haversine formula.
const earthRadiusKm = 6371.0

// Point is a query position in degrees.
type Point struct {
	Lat float64
	Lng float64
}

// Candidate is one responder within the search radius.
type Candidate struct {
	OrganizationID string  `json:"organization_id"`
	DistanceKm     float64 `json:"distance_km"`
}

// Haversine returns the great-circle distance in kilometers between two
// points given in degrees.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180
	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad
	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	a := sinLat*sinLat + math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*sinLng*sinLng
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

// FindNearby returns AVAILABLE responders of the given kind within
// radiusKm of the point, nearest first. Distances are reported to three
// decimal places. An empty result is not an error.
func FindNearby(ctx context.Context, dir store.ResponderDirectory, p Point, radiusKm float64, kind model.ResponderKind) ([]Candidate, error) {
	responders, err := dir.ListResponders(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := []Candidate{}
	for _, r := range responders {
		if r.Availability != model.Available {
			continue
		}
		d := Haversine(p.Lat, p.Lng, r.Lat, r.Lng)
		if d > radiusKm {
			continue
		}
		out = append(out, Candidate{
			OrganizationID: r.OrganizationID,
			DistanceKm:     round3(d),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceKm != out[j].DistanceKm {
			return out[i].DistanceKm < out[j].DistanceKm
		}
		return out[i].OrganizationID < out[j].OrganizationID
	})
	return out, nil
}

// Summary returns the mean and standard deviation of candidate distances.
// Used for dispatch logging and metrics; zero candidates yield zeros.
func Summary(cands []Candidate) (mean, std float64) {
	if len(cands) == 0 {
		return 0, 0
	}
	d := make([]float64, len(cands))
	for i, c := range cands {
		d[i] = c.DistanceKm
	}
	mean = stat.Mean(d, nil)
	if len(d) > 1 {
		std = stat.StdDev(d, nil)
	}
	return mean, std
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
