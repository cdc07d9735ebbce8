package sink

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports the latest value and step of each metric as gauges.
type Prometheus struct {
	values *prometheus.GaugeVec
	steps  *prometheus.GaugeVec
	logged *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Prometheus{
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_value",
			Help:      "Latest value of a training metric",
		}, []string{"metric"}),
		steps: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "metric_step",
			Help:      "Step at which a training metric was last logged",
		}, []string{"metric"}),
		logged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "metric_logged_total",
			Help:      "Number of values logged per training metric",
		}, []string{"metric"}),
	}
	for _, c := range []prometheus.Collector{p.values, p.steps, p.logged} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Log implements Sink.
func (p *Prometheus) Log(_ context.Context, name string, value float64, step int64) error {
	p.values.WithLabelValues(name).Set(value)
	p.steps.WithLabelValues(name).Set(float64(step))
	p.logged.WithLabelValues(name).Inc()
	return nil
}
