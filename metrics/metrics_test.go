package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusMetrics(t *testing.T) {
	p := NewPrometheus(Options{})

	p.IncFormsParsed()
	p.IncLimitExceeded("size")
	p.IncLimitExceeded("count")
	p.IncCodecError("gzip")
	p.IncDecodedBytes(12345)
	p.MeasureParse(time.Now().Add(-time.Millisecond))

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, req)

	body := w.Body.String()
	for _, expect := range []string{
		`inflow_form_parsed_total 1`,
		`inflow_stream_limit_exceeded_total{kind="size"} 1`,
		`inflow_stream_limit_exceeded_total{kind="count"} 1`,
		`inflow_stream_codec_errors_total{encoding="gzip"} 1`,
		`inflow_stream_decoded_bytes_total 12345`,
		`inflow_form_parse_duration_seconds_count 1`,
	} {
		if !strings.Contains(body, expect) {
			t.Errorf("metric missing: %s", expect)
		}
	}
}

func TestPrometheusPrefix(t *testing.T) {
	p := NewPrometheus(Options{Prefix: "custom."})
	p.IncFormsParsed()

	w := httptest.NewRecorder()
	p.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(w.Body.String(), "custom_form_parsed_total 1") {
		t.Error("prefix not applied")
	}
}

func TestVoidDiscards(t *testing.T) {
	// must not panic
	Void.IncFormsParsed()
	Void.IncLimitExceeded("size")
	Void.IncCodecError("gzip")
	Void.IncDecodedBytes(1)
	Void.MeasureParse(time.Now())
}
