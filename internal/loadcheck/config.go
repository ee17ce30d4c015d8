// Package loadcheck drives concurrent recommendation requests against a
// running service and checks every response for budget, score and
// uniqueness violations.
package loadcheck

import "time"

// Config holds configuration for a load check run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Requests int           // Number of requests to generate
	Workers  int           // Number of concurrent workers
	Timeout  time.Duration // HTTP request timeout
	Seed     int64         // Seed for request generation; runs with the same seed send the same requests
	Verbose  bool          // Log every violation as it is found
}

// Defaults used when a Config field is zero.
const (
	DefaultRequests = 200
	DefaultWorkers  = 8
	DefaultTimeout  = 10 * time.Second

	workerChannelMultiplier = 2
	percentageMultiplier    = 100
)

func (c *Config) withDefaults() Config {
	out := *c
	if out.Requests <= 0 {
		out.Requests = DefaultRequests
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	return out
}

// Stats holds run statistics.
type Stats struct {
	Generated  int           `json:"generated"`
	Submitted  int           `json:"submitted"`
	Succeeded  int           `json:"succeeded"`
	Rejected   int           `json:"rejected"`
	Failed     int           `json:"failed"`
	Cached     int           `json:"cached"`
	Violations []Violation   `json:"violations,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// SuccessRate is the share of submitted requests that returned 200, in percent.
func (s *Stats) SuccessRate() float64 {
	if s.Submitted == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Submitted) * percentageMultiplier
}

// Throughput is requests per second over the run.
func (s *Stats) Throughput() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Submitted) / s.Duration.Seconds()
}
