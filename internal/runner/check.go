package runner

import "net/http"

// Names of the default checks.
const (
	CheckStatusIs200          = "status_is_200"
	CheckRateLimitNotExceeded = "rate_limit_not_exceeded"
)

// Check is a named boolean assertion evaluated against every outcome.
type Check struct {
	Name   string
	Assert func(Outcome) bool
}

// DefaultChecks returns the status and rate-limit checks. Both fail on a
// transport error.
func DefaultChecks() []Check {
	return []Check{
		{
			Name: CheckStatusIs200,
			Assert: func(o Outcome) bool {
				return o.Err == nil && o.StatusCode == http.StatusOK
			},
		},
		{
			Name: CheckRateLimitNotExceeded,
			Assert: func(o Outcome) bool {
				return o.Err == nil && o.StatusCode != http.StatusTooManyRequests
			},
		},
	}
}

func evaluateChecks(checks []Check, o Outcome) map[string]bool {
	results := make(map[string]bool, len(checks))
	for _, c := range checks {
		results[c.Name] = c.Assert != nil && c.Assert(o)
	}
	return results
}

func checkNames(checks []Check) []string {
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name)
	}
	return names
}
