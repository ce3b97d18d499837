package model

// TestResult is one agent's report for one run. Times are in milliseconds.
type TestResult struct {
	TotalRequests      int            `json:"totalRequests"`
	SuccessfulRequests int            `json:"successfulRequests"`
	FailedRequests     int            `json:"failedRequests"`
	MinResponseTime    float64        `json:"minResponseTime"`
	MaxResponseTime    float64        `json:"maxResponseTime"`
	AvgResponseTime    float64        `json:"avgResponseTime"`
	TotalResponseTime  float64        `json:"totalResponseTime"`
	StatusCodes        map[string]int `json:"statusCodes"`
	Duration           float64        `json:"duration"`
	Throughput         float64        `json:"throughput"`
	TestID             string         `json:"testId,omitempty"`
	Timestamp          int64          `json:"timestamp"`
}

// AggregatedResult is the fleet-wide merge of every agent's TestResult for a run.
type AggregatedResult struct {
	TotalRequests      int            `json:"totalRequests"`
	SuccessfulRequests int            `json:"successfulRequests"`
	FailedRequests     int            `json:"failedRequests"`
	TotalDuration      float64        `json:"totalDuration"`
	MinResponseTime    float64        `json:"minResponseTime"`
	MaxResponseTime    float64        `json:"maxResponseTime"`
	AvgResponseTime    float64        `json:"avgResponseTime"`
	StatusCodes        map[string]int `json:"statusCodes"`
	Throughput         float64        `json:"throughput"`
	ClientCount        int            `json:"clientCount"`
	Timestamp          int64          `json:"timestamp"`
}
