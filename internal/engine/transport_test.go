package engine

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/meshwire/meshwire-go/internal/config"
)

func TestPreferQuic(t *testing.T) {
	cfg := &config.EngineConfiguration{
		QuicHints:             map[string]int{"quic.example.com:443": 443, "alt.example.org:8443": 8443},
		QuicCanonicalSuffixes: []string{".fast.example.net"},
	}
	tr := &transport{cfg: cfg}

	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"hinted default port", "https://quic.example.com/path", true},
		{"hinted explicit port", "https://alt.example.org:8443/", true},
		{"hinted host wrong port", "https://alt.example.org:9000/", false},
		{"canonical suffix", "https://a.fast.example.net/", true},
		{"canonical suffix with port", "https://b.fast.example.net:8080/", true},
		{"unmatched host", "https://www.example.com/", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			if err != nil {
				t.Fatalf("parse url: %v", err)
			}
			req := &http.Request{URL: u}
			if got := tr.preferQuic(req); got != tt.want {
				t.Errorf("preferQuic(%s) = %v, want %v", tt.url, got, tt.want)
			}
		})
	}
}

// streamCounterValue reads the current stream counter for a label pair from
// the default registry.
func streamCounterValue(t *testing.T, protocol, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != "meshwire_engine_streams_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["protocol"] == protocol && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRoundTripRecordsStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	tr, err := newTransport(&config.EngineConfiguration{
		ConnectTimeoutSeconds:  config.DefaultConnectTimeoutSeconds,
		DNSQueryTimeoutSeconds: config.DefaultDNSQueryTimeoutSeconds,
	}, nil)
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	defer tr.CloseIdleConnections()

	before := streamCounterValue(t, "tcp", "success")

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}
	resp.Body.Close()

	if got := streamCounterValue(t, "tcp", "success"); got != before+1 {
		t.Errorf("stream counter = %v, want %v", got, before+1)
	}

	beforeErr := streamCounterValue(t, "tcp", "error")
	badReq, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:1/", nil)
	if _, err := tr.RoundTrip(badReq); err == nil {
		t.Fatal("RoundTrip to closed port succeeded")
	}
	if got := streamCounterValue(t, "tcp", "error"); got != beforeErr+1 {
		t.Errorf("error stream counter = %v, want %v", got, beforeErr+1)
	}
}

func TestNewTransportHTTP3Disabled(t *testing.T) {
	cfg := &config.EngineConfiguration{
		ConnectTimeoutSeconds:  config.DefaultConnectTimeoutSeconds,
		DNSQueryTimeoutSeconds: config.DefaultDNSQueryTimeoutSeconds,
	}
	tr, err := newTransport(cfg, nil)
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	if tr.h3 != nil {
		t.Error("h3 transport created although HTTP/3 is disabled")
	}
	tr.CloseIdleConnections()
}

func TestNewTransportHTTP3Enabled(t *testing.T) {
	cfg := &config.EngineConfiguration{
		ConnectTimeoutSeconds:    config.DefaultConnectTimeoutSeconds,
		DNSQueryTimeoutSeconds:   config.DefaultDNSQueryTimeoutSeconds,
		EnableHTTP3:              true,
		StreamIdleTimeoutSeconds: config.DefaultStreamIdleTimeoutSeconds,
		H2ConnectionKeepaliveIdleIntervalMilliseconds: config.DefaultH2KeepaliveIdleIntervalMillis,
		H2ConnectionKeepaliveTimeoutSeconds:           config.DefaultH2KeepaliveTimeoutSeconds,
	}
	tr, err := newTransport(cfg, nil)
	if err != nil {
		t.Fatalf("newTransport: %v", err)
	}
	if tr.h3 == nil {
		t.Fatal("h3 transport missing although HTTP/3 is enabled")
	}
	tr.CloseIdleConnections()
}
