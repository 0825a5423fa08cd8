package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Business holds the domain counters. A nil *Business is a valid no-op recorder.
type Business struct {
	process    *prometheus.HistogramVec
	access     *prometheus.CounterVec
	verify     *prometheus.CounterVec
	moderation *prometheus.CounterVec
}

// NewBusiness registers the domain metrics on reg.
func NewBusiness(reg prometheus.Registerer) (*Business, error) {
	b := &Business{}
	for _, def := range []*Metric{MetricsBusinessProcess, MetricsAccessCheck, MetricsPaymentVerify, MetricsChatModeration} {
		collector := NewMetric(def, "matchday")
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register %s: %w", def.Name, err)
		}
		switch def {
		case MetricsBusinessProcess:
			b.process = collector.(*prometheus.HistogramVec)
		case MetricsAccessCheck:
			b.access = collector.(*prometheus.CounterVec)
		case MetricsPaymentVerify:
			b.verify = collector.(*prometheus.CounterVec)
		case MetricsChatModeration:
			b.moderation = collector.(*prometheus.CounterVec)
		}
	}
	return b, nil
}

func (b *Business) ObserveProcess(typ, subtype string, start time.Time) {
	if b == nil {
		return
	}
	b.process.WithLabelValues(typ, subtype).Observe(MillisecondsSince(start))
}

func (b *Business) IncAccessCheck(reason string) {
	if b == nil {
		return
	}
	b.access.WithLabelValues(reason).Inc()
}

func (b *Business) IncPaymentVerify(result string) {
	if b == nil {
		return
	}
	b.verify.WithLabelValues(result).Inc()
}

func (b *Business) IncModeration(outcome string) {
	if b == nil {
		return
	}
	b.moderation.WithLabelValues(outcome).Inc()
}

func newDefaultBusiness() (*Business, error) {
	return NewBusiness(prometheus.DefaultRegisterer)
}

var Module = fx.Options(
	fx.Provide(newDefaultBusiness),
)
