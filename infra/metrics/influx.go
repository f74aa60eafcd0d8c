package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/shopspring/decimal"

	coremetrics "github.com/kilianp07/fieldassign/core/metrics"
	"github.com/kilianp07/fieldassign/infra/logger"
)

// InfluxSink writes assignment outcomes to an InfluxDB instance using the official client.
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

// Close releases the underlying client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

// RecordAssignments writes one "assignment" point per placed call.
func (s *InfluxSink) RecordAssignments(recs []coremetrics.AssignmentRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment").
			AddTag("batch_id", r.BatchID).
			AddTag("engineer_id", r.EngineerID).
			AddTag("call_type", r.CallType).
			AddTag("priority", r.Priority).
			AddTag("dry_run", strconv.FormatBool(r.DryRun)).
			AddField("call_id", r.CallID).
			AddField("score", round3(r.Score)).
			AddField("committed", r.Committed).
			SetTime(r.Time)
		if r.BankID != "" {
			p = p.AddTag("bank_id", r.BankID)
		}
		if r.DistanceKM != nil {
			p = p.AddField("distance_km", round3(*r.DistanceKM))
		}
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordUnassigned writes one "assignment_unassigned" point per unplaced call.
func (s *InfluxSink) RecordUnassigned(recs []coremetrics.UnassignedRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range recs {
		p := write.NewPointWithMeasurement("assignment_unassigned").
			AddTag("batch_id", r.BatchID).
			AddTag("reason", r.Reason).
			AddField("call_id", r.CallID).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordBatch writes the batch summary.
func (s *InfluxSink) RecordBatch(sum coremetrics.BatchSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_batch").
		AddTag("batch_id", sum.BatchID).
		AddTag("dry_run", strconv.FormatBool(sum.DryRun)).
		AddField("total_calls", sum.TotalCalls).
		AddField("assigned", sum.Assigned).
		AddField("unassigned", sum.Unassigned).
		AddField("average_score", round3(sum.AverageScore)).
		AddField("average_km", round3(sum.AverageKM)).
		AddField("engineers_used", sum.EngineersUsed).
		AddField("duration_ms", sum.Duration.Milliseconds()).
		SetTime(sum.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return decimal.NewFromFloat(f).Round(3).InexactFloat64()
}
