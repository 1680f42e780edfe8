// Package export ships derived data points to InfluxDB for long-term
// dashboarding. The exporter is optional and write-only; nothing in the
// pipeline reads back from Influx.
package export

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// InfluxExporter writes derived series through the async write API.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
}

// NewInfluxExporter connects to InfluxDB and verifies the server is healthy.
func NewInfluxExporter(cfg config.InfluxConfig) (*InfluxExporter, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}, nil
}

// WriteDataPoints exports one meter's derived data point window.
func (e *InfluxExporter) WriteDataPoints(meterID string, points []models.EnergyDataPoint) {
	for i := range points {
		p := &points[i]
		point := write.NewPoint(
			"energy_datapoints",
			map[string]string{
				"meter_id": meterID,
			},
			map[string]interface{}{
				"consumption_kwh": p.Consumption,
				"cost":            p.Cost,
				"power_demand_w":  p.PowerDemand,
				"efficiency":      p.Efficiency,
				"carbon_kg":       p.CarbonFootprint,
			},
			p.Timestamp,
		)
		e.writeAPI.WritePoint(point)
	}
}

// WriteInsights exports surfaced insights as annotation points.
func (e *InfluxExporter) WriteInsights(insights []models.Insight) {
	for i := range insights {
		in := &insights[i]
		point := write.NewPoint(
			"energy_insights",
			map[string]string{
				"meter_id": in.MeterID,
				"category": string(in.Category),
				"severity": string(in.Severity),
			},
			map[string]interface{}{
				"confidence":  in.Confidence,
				"description": in.Description,
			},
			in.CreatedAt,
		)
		e.writeAPI.WritePoint(point)
	}
}

// Flush forces buffered points out to the server.
func (e *InfluxExporter) Flush() {
	e.writeAPI.Flush()
}

// Close flushes and releases the client.
func (e *InfluxExporter) Close() {
	e.writeAPI.Flush()
	e.client.Close()
}
