package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/feedback-core/internal/output/controller"
)

// Measurement names.
const (
	MeasurementController   = "controller_stats"
	MeasurementCabinet      = "cabinet"
	MeasurementArtNetEngine = "artnet_engine"
	MeasurementComProxy     = "comproxy"
)

// TickStats is one sample of the cabinet tick loop.
type TickStats struct {
	Cabinet  string
	Ticks    uint64
	Overruns uint64
	LastTick time.Duration
	Toys     int
}

// WriteControllerStats records a controller statistics sample.
func (c *Client) WriteControllerStats(s controller.Stats) {
	c.WritePoint(MeasurementController,
		map[string]string{
			"controller": s.Name,
			"state":      s.State,
		},
		map[string]any{
			"outputs":          s.Outputs,
			"frames_sent":      s.FramesSent,
			"bytes_sent":       s.BytesSent,
			"frames_skipped":   s.FramesSkipped,
			"frames_dropped":   s.FramesDropped,
			"disabled":         s.Disabled,
			"update_failures":  s.UpdateFailures,
			"connects":         s.Connects,
			"connect_failures": s.ConnectFailures,
			"latency_us":       s.LastLatency.Microseconds(),
		},
	)
}

// WriteTickStats records a cabinet tick loop sample.
func (c *Client) WriteTickStats(s TickStats) {
	c.WritePoint(MeasurementCabinet,
		map[string]string{"cabinet": s.Cabinet},
		map[string]any{
			"ticks":    s.Ticks,
			"overruns": s.Overruns,
			"tick_us":  s.LastTick.Microseconds(),
			"toys":     s.Toys,
		},
	)
}

// WriteArtNetEngine records the shared Art-Net engine counters.
func (c *Client) WriteArtNetEngine(packetsSent, sendFailures uint64, disabled bool) {
	c.WritePoint(MeasurementArtNetEngine, nil, map[string]any{
		"packets_sent":  packetsSent,
		"send_failures": sendFailures,
		"disabled":      disabled,
	})
}

// WriteComProxy records the request counters of one COM-port proxy client.
func (c *Client) WriteComProxy(controllerName string, requests, retries, failures uint64) {
	c.WritePoint(MeasurementComProxy,
		map[string]string{"controller": controllerName},
		map[string]any{
			"requests": requests,
			"retries":  retries,
			"failures": failures,
		},
	)
}

// WritePoint writes a point stamped with the current time.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, c.now())
}

// WritePointWithTime writes a point with an explicit timestamp. Points are
// dropped while the client is disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
