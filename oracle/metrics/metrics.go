package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	gometrics "github.com/armon/go-metrics"
	promsink "github.com/armon/go-metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const serviceName = "relayer"

var (
	initOnce sync.Once
	initErr  error
)

// Init installs the Prometheus-backed global sink. Until it is called every
// recording function is a no-op.
func Init() error {
	initOnce.Do(func() {
		sink, err := promsink.NewPrometheusSink()
		if err != nil {
			initErr = fmt.Errorf("failed to create prometheus sink: %w", err)
			return
		}

		cfg := gometrics.DefaultConfig(serviceName)
		cfg.EnableHostname = false
		cfg.EnableHostnameLabel = false
		cfg.EnableRuntimeMetrics = false

		if _, err := gometrics.NewGlobal(cfg, sink); err != nil {
			initErr = fmt.Errorf("failed to install metrics: %w", err)
		}
	})

	return initErr
}

// Handler exposes the collected metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func networkLabels(networkID string, extra ...gometrics.Label) []gometrics.Label {
	return append([]gometrics.Label{{Name: "network", Value: networkID}}, extra...)
}

func ItemEnqueued(networkID, kind string) {
	gometrics.IncrCounterWithLabels([]string{"queue", "enqueued"}, 1,
		networkLabels(networkID, gometrics.Label{Name: "kind", Value: kind}))
}

func ItemDeduplicated(networkID, kind string) {
	gometrics.IncrCounterWithLabels([]string{"queue", "deduplicated"}, 1,
		networkLabels(networkID, gometrics.Label{Name: "kind", Value: kind}))
}

func ItemProcessed(networkID, kind string, start time.Time) {
	labels := networkLabels(networkID, gometrics.Label{Name: "kind", Value: kind})
	gometrics.IncrCounterWithLabels([]string{"queue", "processed"}, 1, labels)
	gometrics.MeasureSinceWithLabels([]string{"queue", "process_time"}, start, labels)
}

func ItemDropped(networkID, kind string) {
	gometrics.IncrCounterWithLabels([]string{"queue", "dropped"}, 1,
		networkLabels(networkID, gometrics.Label{Name: "kind", Value: kind}))
}

func QueueDepth(networkID string, depth int) {
	gometrics.SetGaugeWithLabels([]string{"queue", "depth"}, float32(depth), networkLabels(networkID))
}

func RequestReleased(networkID string) {
	gometrics.IncrCounterWithLabels([]string{"delayer", "released"}, 1, networkLabels(networkID))
}

func RoutingError(networkID string) {
	gometrics.IncrCounterWithLabels([]string{"searcher", "routing_errors"}, 1, networkLabels(networkID))
}

func BlockHeight(networkID string, height uint64) {
	gometrics.SetGaugeWithLabels([]string{"provider", "block_height"}, float32(height), networkLabels(networkID))
}
