package loadgen

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

func testConfig(url string) *model.TestConfig {
	return &model.TestConfig{
		URL:               url,
		Method:            "GET",
		Headers:           map[string]string{},
		RequestsPerClient: 20,
		Concurrency:       4,
		TimeoutMs:         2000,
	}
}

func TestRun_CountsRequests(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		if n%5 == 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res, err := Run(context.Background(), testConfig(server.URL))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if res.TotalRequests != 20 || int(atomic.LoadInt32(&hits)) != 20 {
		t.Errorf("expected 20 requests, got %d (server saw %d)", res.TotalRequests, hits)
	}
	if res.SuccessfulRequests != 16 || res.FailedRequests != 4 {
		t.Errorf("expected 16/4, got %d/%d", res.SuccessfulRequests, res.FailedRequests)
	}
	if res.StatusCodes["200"] != 16 || res.StatusCodes["500"] != 4 {
		t.Errorf("unexpected status codes %v", res.StatusCodes)
	}
	if res.MinResponseTime <= 0 || res.MaxResponseTime < res.MinResponseTime {
		t.Errorf("unexpected response times min=%f max=%f", res.MinResponseTime, res.MaxResponseTime)
	}
	if res.Duration <= 0 || res.Throughput <= 0 {
		t.Errorf("unexpected duration %f throughput %f", res.Duration, res.Throughput)
	}
	if res.TestID == "" || res.Timestamp == 0 {
		t.Error("result should carry an id and a timestamp")
	}
}

func TestRun_IntegerDivisionAcrossWorkers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.RequestsPerClient = 10
	cfg.Concurrency = 3

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.TotalRequests != 9 {
		t.Errorf("expected 3 workers x 3 requests, got %d", res.TotalRequests)
	}
}

func TestRun_SendsHeadersAndBody(t *testing.T) {
	type seen struct {
		method, header, body string
	}
	got := make(chan seen, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		select {
		case got <- seen{r.Method, r.Header.Get("X-Test"), string(b)}:
		default:
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	body := `{"hello":"world"}`
	cfg := testConfig(server.URL)
	cfg.Method = "post"
	cfg.Headers = map[string]string{"X-Test": "yes"}
	cfg.Body = &body
	cfg.RequestsPerClient = 1
	cfg.Concurrency = 1

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	s := <-got
	if s.method != http.MethodPost || s.header != "yes" || s.body != body {
		t.Errorf("unexpected request %+v", s)
	}
	if res.SuccessfulRequests != 1 || res.StatusCodes["201"] != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRun_TransportErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	cfg := testConfig(url)
	cfg.RequestsPerClient = 4
	cfg.Concurrency = 2

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.FailedRequests != 4 || res.StatusCodes[StatusError] != 4 {
		t.Errorf("expected 4 transport errors, got %+v", res)
	}
	if res.MinResponseTime != 0 || res.MaxResponseTime != 0 {
		t.Error("requests without a response are not timed")
	}
}

func TestRun_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	cfg := testConfig(server.URL)
	cfg.RequestsPerClient = 2
	cfg.Concurrency = 2
	cfg.TimeoutMs = 50

	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if res.StatusCodes[StatusError] != 2 {
		t.Errorf("timed out requests count as errors, got %v", res.StatusCodes)
	}
}

func TestRun_Cancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(20 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Run(ctx, testConfig(server.URL)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.TestConfig)
	}{
		{"bad method", func(c *model.TestConfig) { c.Method = "TRACE" }},
		{"bad url", func(c *model.TestConfig) { c.URL = "not a url" }},
		{"no concurrency", func(c *model.TestConfig) { c.Concurrency = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("http://127.0.0.1:1/")
			tt.mutate(cfg)
			if _, err := Run(context.Background(), cfg); !errors.Is(err, model.ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
