package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	promNamespace       = "inflow"
	promFormSubsystem   = "form"
	promStreamSubsystem = "stream"
)

// Prometheus implements the prometheus metrics backend.
type Prometheus struct {
	formsParsedM   prometheus.Counter
	parseDurationM prometheus.Histogram
	limitExceededM *prometheus.CounterVec
	codecErrorsM   *prometheus.CounterVec
	decodedBytesM  prometheus.Counter

	registry *prometheus.Registry
	handler  http.Handler
}

// NewPrometheus returns a new Prometheus metric backend.
func NewPrometheus(opts Options) *Prometheus {
	namespace := promNamespace
	if opts.Prefix != "" {
		namespace = strings.TrimSuffix(opts.Prefix, ".")
	}

	formsParsed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promFormSubsystem,
		Name:      "parsed_total",
		Help:      "The total of successfully parsed forms.",
	})

	parseDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: promFormSubsystem,
		Name:      "parse_duration_seconds",
		Help:      "Duration in seconds of parsing one form.",
	})

	limitExceeded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promStreamSubsystem,
		Name:      "limit_exceeded_total",
		Help:      "The total of streams aborted over a configured ceiling.",
	}, []string{"kind"})

	codecErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promStreamSubsystem,
		Name:      "codec_errors_total",
		Help:      "The total of streams aborted on corrupt compressed input.",
	}, []string{"encoding"})

	decodedBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: promStreamSubsystem,
		Name:      "decoded_bytes_total",
		Help:      "The total of decoded bytes observed by the limit guard.",
	})

	p := &Prometheus{
		formsParsedM:   formsParsed,
		parseDurationM: parseDuration,
		limitExceededM: limitExceeded,
		codecErrorsM:   codecErrors,
		decodedBytesM:  decodedBytes,
		registry:       prometheus.NewRegistry(),
	}

	p.registry.MustRegister(
		formsParsed,
		parseDuration,
		limitExceeded,
		codecErrors,
		decodedBytes,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	p.handler = promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
	return p
}

// Handler returns the HTTP handler exposing the collected values.
func (p *Prometheus) Handler() http.Handler {
	return p.handler
}

func (p *Prometheus) IncFormsParsed() {
	p.formsParsedM.Inc()
}

func (p *Prometheus) IncLimitExceeded(kind string) {
	p.limitExceededM.WithLabelValues(kind).Inc()
}

func (p *Prometheus) IncCodecError(encoding string) {
	p.codecErrorsM.WithLabelValues(encoding).Inc()
}

func (p *Prometheus) IncDecodedBytes(n int64) {
	p.decodedBytesM.Add(float64(n))
}

func (p *Prometheus) MeasureParse(start time.Time) {
	p.parseDurationM.Observe(time.Since(start).Seconds())
}
