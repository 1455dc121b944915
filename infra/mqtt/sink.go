package mqtt

import (
	"github.com/kilianp07/heatsim/core/factory"
	coremetrics "github.com/kilianp07/heatsim/core/metrics"
)

func init() {
	_ = coremetrics.RegisterMetricsSink("mqtt", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var cfg Config
		if err := factory.Decode(conf, &cfg); err != nil {
			return nil, err
		}
		return NewPublisher(cfg)
	})
}
