// Package aggregate merges per-agent load test results into one fleet-wide summary.
package aggregate

import (
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// UnreportedMinimum is the aggregate minimum response time when no agent
// reported a non-zero minimum (2^53 - 1, the largest exactly representable integer).
const UnreportedMinimum float64 = 9007199254740991

// Merge computes the aggregated result over every agent's report.
//
// Counts and status codes are summed. The slowest agent's duration becomes the
// total duration. An agent reporting a minimum response time of exactly 0 is
// treated as not having reported one, while a maximum of 0 is compared normally.
// When no agent reports a minimum the aggregate minimum stays at UnreportedMinimum.
func Merge(results map[string]model.TestResult, now time.Time) model.AggregatedResult {
	agg := model.AggregatedResult{
		MinResponseTime: UnreportedMinimum,
		StatusCodes:     make(map[string]int),
		ClientCount:     len(results),
		Timestamp:       now.UnixMilli(),
	}

	var totalResponseTime float64

	for _, r := range results {
		agg.TotalRequests += r.TotalRequests
		agg.SuccessfulRequests += r.SuccessfulRequests
		agg.FailedRequests += r.FailedRequests

		if r.MinResponseTime != 0 && r.MinResponseTime < agg.MinResponseTime {
			agg.MinResponseTime = r.MinResponseTime
		}
		if r.MaxResponseTime > agg.MaxResponseTime {
			agg.MaxResponseTime = r.MaxResponseTime
		}

		totalResponseTime += r.TotalResponseTime

		for code, count := range r.StatusCodes {
			agg.StatusCodes[code] += count
		}

		if r.Duration > agg.TotalDuration {
			agg.TotalDuration = r.Duration
		}
	}

	if agg.TotalRequests > 0 {
		agg.AvgResponseTime = totalResponseTime / float64(agg.TotalRequests)
	}
	agg.Throughput = Throughput(agg.TotalRequests, agg.TotalDuration)

	return agg
}

// Throughput returns requests per second for a request count over a duration in
// milliseconds, or 0 when the duration is not positive.
func Throughput(requests int, durationMs float64) float64 {
	if durationMs <= 0 {
		return 0
	}
	return float64(requests) * 1000 / durationMs
}
