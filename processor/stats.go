package processor

import "alphaflow/logger"

// Stats counts what a worker did with its records. Drops never change the
// computed output; they are reported for observability only.
type Stats struct {
	Records         int64
	ParseErrors     int64
	TimeRangeErrors int64
	InvalidFactors  int64
	Aggregated      int64
	Flushes         int64
	PartialsEmitted int64
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Records += o.Records
	s.ParseErrors += o.ParseErrors
	s.TimeRangeErrors += o.TimeRangeErrors
	s.InvalidFactors += o.InvalidFactors
	s.Aggregated += o.Aggregated
	s.Flushes += o.Flushes
	s.PartialsEmitted += o.PartialsEmitted
}

// Dropped is the number of records that did not contribute to any bucket.
func (s Stats) Dropped() int64 {
	return s.ParseErrors + s.TimeRangeErrors + s.InvalidFactors
}

func (s Stats) Fields() logger.Fields {
	return logger.Fields{
		"records_read":      s.Records,
		"parse_errors":      s.ParseErrors,
		"time_range_errors": s.TimeRangeErrors,
		"invalid_factors":   s.InvalidFactors,
		"aggregated":        s.Aggregated,
		"flushes":           s.Flushes,
		"partials_emitted":  s.PartialsEmitted,
	}
}

// Report publishes each counter through LogMetric.
func (s Stats) Report(log *logger.Log, component string, fields logger.Fields) {
	for name, v := range s.Fields() {
		log.LogMetric(component, name, v, "counter", fields)
	}
}
