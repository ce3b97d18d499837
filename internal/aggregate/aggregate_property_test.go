package aggregate

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/armada-loadtest/coordinator/internal/model"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var statusCodeGen = gen.OneConstOf("200", "201", "204", "301", "404", "500", "503", "error")

// resultGen generates a single agent report with a small status histogram.
func resultGen() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 10000),
		gen.Float64Range(0, 60000),
		gen.Float64Range(0, 5000),
		gen.MapOf(statusCodeGen, gen.IntRange(0, 1000)),
	).Map(func(values []interface{}) model.TestResult {
		total := values[0].(int)
		return model.TestResult{
			TotalRequests:      total,
			SuccessfulRequests: total,
			Duration:           values[1].(float64),
			MinResponseTime:    values[2].(float64),
			MaxResponseTime:    values[2].(float64) * 2,
			TotalResponseTime:  values[2].(float64) * float64(total),
			StatusCodes:        values[3].(map[string]int),
		}
	})
}

func toResultMap(results []model.TestResult) map[string]model.TestResult {
	m := make(map[string]model.TestResult, len(results))
	for i, r := range results {
		m[fmt.Sprintf("client-%d", i+1)] = r
	}
	return m
}

// **Feature: fleet-coordinator, Property 1: throughput is never negative**
// Aggregated throughput is 0 when the aggregated duration is 0 and non-negative otherwise.
func TestThroughputProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("throughput is zero without duration and non-negative otherwise", prop.ForAll(
		func(results []model.TestResult) bool {
			agg := Merge(toResultMap(results), time.Now())
			if agg.TotalDuration == 0 {
				return agg.Throughput == 0
			}
			return agg.Throughput >= 0
		},
		gen.SliceOf(resultGen()),
	))

	properties.TestingRun(t)
}

// **Feature: fleet-coordinator, Property 2: status code merge is order independent**
// Merging the same agent reports under any client labelling yields the same histogram.
func TestStatusCodeMergeProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("status code histogram does not depend on submission order", prop.ForAll(
		func(results []model.TestResult) bool {
			forward := Merge(toResultMap(results), time.Now())

			reversed := make([]model.TestResult, len(results))
			for i, r := range results {
				reversed[len(results)-1-i] = r
			}
			backward := Merge(toResultMap(reversed), time.Now())

			return reflect.DeepEqual(forward.StatusCodes, backward.StatusCodes)
		},
		gen.SliceOf(resultGen()),
	))

	properties.Property("status code totals equal the per-agent sums", prop.ForAll(
		func(results []model.TestResult) bool {
			expected := make(map[string]int)
			for _, r := range results {
				for code, count := range r.StatusCodes {
					expected[code] += count
				}
			}
			agg := Merge(toResultMap(results), time.Now())
			return reflect.DeepEqual(expected, agg.StatusCodes)
		},
		gen.SliceOf(resultGen()),
	))

	properties.TestingRun(t)
}
