package inflow

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/zalando/inflow/form"
	"github.com/zalando/inflow/limit"
	"github.com/zalando/inflow/logging"
	"github.com/zalando/inflow/metrics"
)

// Options to start the form parsing server.
type Options struct {

	// Address is the network address that the server should listen on.
	Address string

	// ApplicationLogLevel, ApplicationLogPrefix and
	// ApplicationLogJSONEnabled configure the application log.
	ApplicationLogLevel       log.Level
	ApplicationLogPrefix      string
	ApplicationLogJSONEnabled bool

	// MetricsListener is the network address exposing the /metrics
	// endpoint. Keep empty to disable the listener.
	MetricsListener string

	// MetricsPrefix is the common prefix of the exported metrics.
	MetricsPrefix string

	// MaxFormContentSize is the server-wide ceiling on the decoded size
	// in bytes of a form body and MaxFormKeys the ceiling on the number
	// of keys in it. When both are zero, the hardcoded defaults
	// limit.DefaultMaxLength and limit.DefaultMaxFields apply. A negative
	// value disables the individual ceiling.
	MaxFormContentSize int64
	MaxFormKeys        int

	// CodecBufferSize is the read and decode buffer size in bytes.
	CodecBufferSize int
}

func (o Options) formOptions(m metrics.Metrics) form.Options {
	fo := form.Options{
		BufferSize: o.CodecBufferSize,
		Metrics:    m,
	}

	if o.MaxFormContentSize != 0 || o.MaxFormKeys != 0 {
		fo.ServerLimits = &limit.Limits{
			MaxLength: o.MaxFormContentSize,
			MaxFields: o.MaxFormKeys,
		}
	}

	return fo
}

// NewHandler returns the HTTP handler of the form parsing server: POST
// requests are parsed through the full pipeline and answered with the parsed
// pairs as JSON, failures are answered with the status of form.ErrorStatus.
func NewHandler(o Options, m metrics.Metrics) http.Handler {
	if m == nil {
		m = metrics.Void
	}

	fo := o.formOptions(m)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		values, err := form.ParseRequest(r.Context(), r, fo)
		if err != nil {
			log.Debugf("parsing form from %s: %v", r.RemoteAddr, err)
			http.Error(w, err.Error(), form.ErrorStatus(err))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(values)
	})
}

// Run starts the form parsing server with the given options. It blocks until
// the listener fails.
func Run(o Options) error {
	logging.Init(logging.Options{
		ApplicationLogLevel:       o.ApplicationLogLevel,
		ApplicationLogPrefix:      o.ApplicationLogPrefix,
		ApplicationLogJSONEnabled: o.ApplicationLogJSONEnabled,
	})

	m := metrics.Init(metrics.Options{
		Listener: o.MetricsListener,
		Prefix:   o.MetricsPrefix,
	})

	log.Infof("inflow listener on %s", o.Address)
	return http.ListenAndServe(o.Address, NewHandler(o, m))
}
