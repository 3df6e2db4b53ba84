// Package metrics implements collection of pipeline metrics: decoded stream
// sizes, parse durations, limit violations and codec failures. The Prometheus
// backend exposes them on a dedicated listener.
package metrics

import (
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Options for initializing metrics collection.
type Options struct {

	// Network address where the current metrics values can be pulled
	// from. If not set, no listener is started.
	Listener string

	// Common prefix for the collected metrics. Defaults to "inflow".
	Prefix string
}

// Metrics receives the measurements of the content pipeline. Implementations
// must be safe for concurrent use.
type Metrics interface {

	// IncFormsParsed counts one successfully parsed form.
	IncFormsParsed()

	// IncLimitExceeded counts one stream aborted over a ceiling,
	// partitioned by the kind of ceiling.
	IncLimitExceeded(kind string)

	// IncCodecError counts one stream aborted on corrupt input,
	// partitioned by encoding.
	IncCodecError(encoding string)

	// IncDecodedBytes adds the decoded bytes observed by one stream.
	IncDecodedBytes(n int64)

	// MeasureParse records the duration of one parse since start.
	MeasureParse(start time.Time)
}

type void struct{}

// Void discards every measurement. It is the default, so callers never need
// to nil-check.
var Void Metrics = void{}

func (void) IncFormsParsed()         {}
func (void) IncLimitExceeded(string) {}
func (void) IncCodecError(string)    {}
func (void) IncDecodedBytes(int64)   {}
func (void) MeasureParse(time.Time)  {}

// Init starts the metrics collection with a Prometheus backend and, when a
// listener address is configured, serves the values on /metrics.
func Init(o Options) *Prometheus {
	p := NewPrometheus(o)
	if o.Listener == "" {
		log.Infoln("metrics listener disabled")
		return p
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	log.Infof("metrics listener on %s/metrics", o.Listener)
	go http.ListenAndServe(o.Listener, mux)
	return p
}
