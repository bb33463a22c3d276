package types

const (
	ValidationPassed = "passed"
	ValidationFailed = "failed"
)

type ValidationDetail struct {
	Name     string   `json:"name"`
	Status   string   `json:"status"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationSummary is the pass/fail report of the external validator.
type ValidationSummary struct {
	Name       string             `json:"name"`
	SourceName string             `json:"source_name"`
	Status     string             `json:"status"`
	Details    []ValidationDetail `json:"details"`
}

func (s *ValidationSummary) Passed() bool {
	return s.Status == ValidationPassed
}
