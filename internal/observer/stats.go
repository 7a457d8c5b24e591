package observer

import "github.com/prometheus/client_golang/prometheus"

// Stats counts observer activity. A nil *Stats is valid and records nothing.
type Stats struct {
	Epochs     prometheus.Counter
	Saves      prometheus.Counter
	Records    prometheus.Counter
	Samples    prometheus.Counter
	BestMetric prometheus.Gauge
}

// NewStats creates the collectors and registers them with reg.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		Epochs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "observer",
			Name:      "epochs_total",
			Help:      "Epoch-end events handled.",
		}),
		Saves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "observer",
			Name:      "best_model_saves_total",
			Help:      "Times a better model was written to disk.",
		}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "observer",
			Name:      "records_logged_total",
			Help:      "Committed metric records sent to the tracking backend.",
		}),
		Samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "observer",
			Name:      "prediction_samples_total",
			Help:      "Prediction sample images logged.",
		}),
		BestMetric: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "observer",
			Name:      "best_metric",
			Help:      "Best value of the monitored metric so far.",
		}),
	}
	reg.MustRegister(s.Epochs, s.Saves, s.Records, s.Samples, s.BestMetric)
	return s
}

func (s *Stats) epoch() {
	if s != nil {
		s.Epochs.Inc()
	}
}

func (s *Stats) saved(best float64) {
	if s != nil {
		s.Saves.Inc()
		s.BestMetric.Set(best)
	}
}

func (s *Stats) logged(samples int) {
	if s != nil {
		s.Records.Inc()
		s.Samples.Add(float64(samples))
	}
}
