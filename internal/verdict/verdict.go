// Package verdict defines the canonical JSON document the judge core
// emits on standard output, plus constructors for the non-success
// verdicts produced by VerdictBuilder.
package verdict

import "strings"

// Status is the closed set of top-level verdict outcomes.
type Status string

const (
	StatusCompleted     Status = "completed"
	StatusCompileError  Status = "compile_error" // reserved for the outer service; never emitted here
	StatusTimedOut      Status = "timed_out"
	StatusRunnerError   Status = "runner_error"
	StatusResourceLimit Status = "resource_limit"
)

// Outcome is the closed set of per-run and per-test outcomes.
type Outcome string

const (
	OutcomePassed  Outcome = "Passed"
	OutcomeFailed  Outcome = "Failed"
	OutcomeSkipped Outcome = "Skipped"
	OutcomeUnknown Outcome = "Unknown"
)

// FieldCap is the maximum length, in characters, of any single text
// field in the verdict document.
const FieldCap = 16_000

const truncationMarker = "...[truncated]"

// Truncate caps s at FieldCap characters, appending the truncation
// marker when it overflows. Used by both the report converter and the
// verdict builder so the cap is enforced identically everywhere.
func Truncate(s string) (string, bool) {
	return TruncateTo(s, FieldCap)
}

// TruncateTo caps s at n characters, appending the truncation marker
// when it overflows.
func TruncateTo(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]) + truncationMarker, true
}

// NullableString becomes nil when s is blank, matching the "blank
// strings become null" normalization rule.
func NullableString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Counters is the fixed nine-key summary of a test run.
type Counters struct {
	Total        int `json:"total"`
	Executed     int `json:"executed"`
	Passed       int `json:"passed"`
	Failed       int `json:"failed"`
	Skipped      int `json:"skipped"`
	Error        int `json:"error"`
	Timeout      int `json:"timeout"`
	Aborted      int `json:"aborted"`
	Inconclusive int `json:"inconclusive"`
}

// Run summarizes the whole test execution.
type Run struct {
	TestRunID      string   `json:"testRunId"`
	OverallOutcome Outcome  `json:"overallOutcome"`
	CreatedAt      *string  `json:"createdAt"`
	StartedAt      *string  `json:"startedAt"`
	FinishedAt     *string  `json:"finishedAt"`
	DurationMs     int64    `json:"durationMs"`
	Counters       Counters `json:"counters"`
}

// TestResult is one test's canonical result.
type TestResult struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	ClassName          *string `json:"className"`
	FullyQualifiedName *string `json:"fullyQualifiedName"`
	Outcome            Outcome `json:"outcome"`
	DurationMs         int64   `json:"durationMs"`
	StartedAt          *string `json:"startedAt"`
	FinishedAt         *string `json:"finishedAt"`
	Message            *string `json:"message"`
	StackTrace         *string `json:"stackTrace"`
}

// Diagnostics carries auxiliary, non-contractual context about how a
// verdict was produced. All fields are optional; only the ones
// relevant to a given status are populated.
type Diagnostics struct {
	Stdout          *string `json:"stdout,omitempty"`
	StdoutTruncated *bool   `json:"stdoutTruncated,omitempty"`
	Stderr          *string `json:"stderr,omitempty"`
	StderrTruncated *bool   `json:"stderrTruncated,omitempty"`
	TrxPath         *string `json:"trxPath,omitempty"`
	Note            *string `json:"note"`
	Phase           *string `json:"phase,omitempty"`
	ExitCode        *int    `json:"exitCode,omitempty"`
	TrxBytes        *int64  `json:"trxBytes,omitempty"`
	MaxTrxBytes     *int64  `json:"maxTrxBytes,omitempty"`
}

// Verdict is the single JSON document the core writes to stdout for
// every submission, success or failure. Run, Tests, and Diagnostics are
// pointers so a partial (non-success) verdict can omit them entirely
// rather than serializing as null; the completed path always sets all
// three, including a Tests pointer to a possibly-empty slice, so an
// empty test list still renders as "tests":[].
type Verdict struct {
	SubmissionID string        `json:"submissionId"`
	Status       Status        `json:"status"`
	Run          *Run          `json:"run,omitempty"`
	Tests        *[]TestResult `json:"tests,omitempty"`
	Diagnostics  *Diagnostics  `json:"diagnostics,omitempty"`
}

// Result is the verdict document paired with the process exit code the
// CLI entrypoint must return for it.
type Result struct {
	Verdict  Verdict
	ExitCode int
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func i64Ptr(i int64) *int64   { return &i }
func boolPtr(b bool) *bool    { return &b }

// Timeout builds the minimal document for a phase that never exited
// within its deadline.
func Timeout(submissionID string) Result {
	return Result{
		Verdict: Verdict{
			SubmissionID: submissionID,
			Status:       StatusTimedOut,
		},
		ExitCode: 124,
	}
}

// ResourceLimitProcess builds a resource_limit verdict for the
// heuristic-triggered case: no artifact, but exit code or captured
// output signals the sandbox killed the child for exceeding resources.
func ResourceLimitProcess(submissionID, note string, exitCode int, stdout string, stdoutTruncated bool, stderr string, stderrTruncated bool) Result {
	out, outTrunc := Truncate(stdout)
	errOut, errTrunc := Truncate(stderr)
	code := exitCode
	if code == 0 {
		code = 137
	}
	return Result{
		Verdict: Verdict{
			SubmissionID: submissionID,
			Status:       StatusResourceLimit,
			Diagnostics: &Diagnostics{
				Note:            strPtr(note),
				ExitCode:        intPtr(exitCode),
				Stdout:          strPtr(out),
				StdoutTruncated: boolPtr(stdoutTruncated || outTrunc),
				Stderr:          strPtr(errOut),
				StderrTruncated: boolPtr(stderrTruncated || errTrunc),
			},
		},
		ExitCode: code,
	}
}

// ResourceLimitArtifactTooLarge builds a resource_limit verdict for an
// oversized report artifact.
func ResourceLimitArtifactTooLarge(submissionID, note string, exitCode int, trxBytes, maxTrxBytes int64) Result {
	code := exitCode
	if code == 0 {
		code = 137
	}
	return Result{
		Verdict: Verdict{
			SubmissionID: submissionID,
			Status:       StatusResourceLimit,
			Diagnostics: &Diagnostics{
				Note:        strPtr(note),
				ExitCode:    intPtr(exitCode),
				TrxBytes:    i64Ptr(trxBytes),
				MaxTrxBytes: i64Ptr(maxTrxBytes),
			},
		},
		ExitCode: code,
	}
}

// RunnerError builds a runner_error verdict for a named failing phase.
// exitOverride, when non-zero, takes precedence over the child's own
// exit code.
func RunnerError(submissionID, phase string, exitCode, exitOverride int, stdout string, stdoutTruncated bool, stderr string, stderrTruncated bool) Result {
	out, outTrunc := Truncate(stdout)
	errOut, errTrunc := Truncate(stderr)
	code := exitCode
	if exitOverride != 0 {
		code = exitOverride
	}
	return Result{
		Verdict: Verdict{
			SubmissionID: submissionID,
			Status:       StatusRunnerError,
			Diagnostics: &Diagnostics{
				Phase:           strPtr(phase),
				ExitCode:        intPtr(exitCode),
				Stdout:          strPtr(out),
				StdoutTruncated: boolPtr(stdoutTruncated || outTrunc),
				Stderr:          strPtr(errOut),
				StderrTruncated: boolPtr(stderrTruncated || errTrunc),
			},
		},
		ExitCode: code,
	}
}
