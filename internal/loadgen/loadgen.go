// Package loadgen executes a TestConfig against its target and reports one TestResult.
package loadgen

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/armada-loadtest/coordinator/internal/aggregate"
	"github.com/armada-loadtest/coordinator/internal/model"
)

const (
	tcpDialTimeout        = 5 * time.Second
	tcpKeepAliveInterval  = 30 * time.Second
	tlsHandshakeTimeout   = 5 * time.Second
	idleConnTimeout       = 90 * time.Second
	expectContinueTimeout = 1 * time.Second
)

// StatusError is the status code key used for requests that got no response.
const StatusError = "error"

// Run issues the configured load and returns the local result.
// Each of the concurrency workers sends requests_per_client/concurrency requests.
// Cancelling ctx stops the workers and returns ctx.Err().
func Run(ctx context.Context, cfg *model.TestConfig) (model.TestResult, error) {
	if err := cfg.Validate(); err != nil {
		return model.TestResult{}, err
	}

	client := newHTTPClient(cfg)
	defer client.CloseIdleConnections()

	perWorker := cfg.RequestsPerClient / cfg.Concurrency
	rec := newRecorder()
	method := strings.ToUpper(cfg.Method)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Concurrency; i++ {
		g.Go(func() error {
			for n := 0; n < perWorker; n++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				rec.observe(doRequest(gctx, client, method, cfg))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.TestResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.TestResult{}, err
	}

	return rec.result(time.Since(start)), nil
}

// outcome is the observation of one request. status is 0 when no response arrived.
type outcome struct {
	status  int
	elapsed time.Duration
}

func doRequest(ctx context.Context, client *http.Client, method string, cfg *model.TestConfig) outcome {
	var body io.Reader
	if cfg.Body != nil {
		body = strings.NewReader(*cfg.Body)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return outcome{}
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return outcome{}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	return outcome{status: resp.StatusCode, elapsed: time.Since(start)}
}

func newHTTPClient(cfg *model.TestConfig) *http.Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond

	transport := &http.Transport{
		MaxIdleConns:        cfg.Concurrency,
		MaxIdleConnsPerHost: cfg.Concurrency,
		MaxConnsPerHost:     cfg.Concurrency * 2,
		IdleConnTimeout:     idleConnTimeout,
		ForceAttemptHTTP2:   true,
		DialContext: (&net.Dialer{
			Timeout:   tcpDialTimeout,
			KeepAlive: tcpKeepAliveInterval,
		}).DialContext,
		TLSHandshakeTimeout:   tlsHandshakeTimeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: expectContinueTimeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// recorder accumulates outcomes from every worker.
type recorder struct {
	mu       sync.Mutex
	total    int
	success  int
	failed   int
	min      float64
	max      float64
	sum      float64
	timed    bool
	statuses map[string]int
}

func newRecorder() *recorder {
	return &recorder{statuses: make(map[string]int)}
}

func (r *recorder) observe(o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total++
	if o.status == 0 {
		r.failed++
		r.statuses[StatusError]++
		return
	}

	r.statuses[strconv.Itoa(o.status)]++
	if o.status >= 200 && o.status < 300 {
		r.success++
	} else {
		r.failed++
	}

	ms := float64(o.elapsed) / float64(time.Millisecond)
	if !r.timed || ms < r.min {
		r.min = ms
	}
	if ms > r.max {
		r.max = ms
	}
	r.sum += ms
	r.timed = true
}

func (r *recorder) result(elapsed time.Duration) model.TestResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	durationMs := float64(elapsed) / float64(time.Millisecond)
	res := model.TestResult{
		TotalRequests:      r.total,
		SuccessfulRequests: r.success,
		FailedRequests:     r.failed,
		MinResponseTime:    r.min,
		MaxResponseTime:    r.max,
		TotalResponseTime:  r.sum,
		StatusCodes:        make(map[string]int, len(r.statuses)),
		Duration:           durationMs,
		TestID:             uuid.NewString(),
		Timestamp:          time.Now().UnixMilli(),
	}
	for code, n := range r.statuses {
		res.StatusCodes[code] = n
	}
	if r.total > 0 {
		res.AvgResponseTime = r.sum / float64(r.total)
		res.Throughput = aggregate.Throughput(r.total, durationMs)
	}
	return res
}

// Summary renders a one-line description of a result for logs.
func Summary(res model.TestResult) string {
	return fmt.Sprintf("%d requests (%d ok, %d failed) in %.0fms, %.2f req/s",
		res.TotalRequests, res.SuccessfulRequests, res.FailedRequests, res.Duration, res.Throughput)
}
