package models

// PolicyConfig from yaml
type PolicyConfig struct {
	Name  string       `yaml:"name"`
	Rules []PolicyRule `yaml:"rules"`
}

// PolicySeverity of a failed rule: error fails the operation, warn only
// surfaces in output.
type PolicySeverity string

const (
	PolicySeverityError PolicySeverity = "error"
	PolicySeverityWarn  PolicySeverity = "warn"
)

// PolicyRule cel rule over the build report
type PolicyRule struct {
	Name       string         `yaml:"name"`
	Expr       string         `yaml:"expr"`
	FailureMsg string         `yaml:"failure_msg"`
	Severity   PolicySeverity `yaml:"severity,omitempty"`
}

// PolicyResult eval result
type PolicyResult struct {
	RuleName   string
	Passed     bool
	FailureMsg string
	Severity   PolicySeverity
}
