package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/aidline/aidline/core/metrics"
	"github.com/aidline/aidline/infra/logger"
)

// InfluxSink writes case events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordAssignment writes the assignment results as line protocol events.
func (s *InfluxSink) RecordAssignment(res []coremetrics.AssignmentResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		p := write.NewPointWithMeasurement("case_assignment").
			AddTag("case_id", r.CaseID).
			AddTag("organization_id", r.OrganizationID).
			AddTag("severity", strconv.Itoa(r.Severity)).
			AddTag("auto", strconv.FormatBool(r.Auto)).
			AddTag("component", "assignment_planner").
			AddField("distance_km", round3(r.DistanceKm)).
			AddField("candidate_mean_km", round3(r.CandidateMean)).
			AddField("candidate_std_km", round3(r.CandidateStd)).
			AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition persists one committed status change.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("case_transition").
		AddTag("case_id", ev.CaseID).
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddTag("component", "lifecycle_engine").
		AddField("severity", ev.Severity).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCaseCreated persists a case intake.
func (s *InfluxSink) RecordCaseCreated(ev coremetrics.CaseCreatedEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("case_created").
		AddTag("case_id", ev.CaseID).
		AddTag("component", "lifecycle_engine").
		AddField("severity", ev.Severity).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
