// Package report implements the ReportConverter: it parses the
// engine-native TRX XML test report and emits the canonical verdict
// JSON, applying the normalization, truncation, and outcome-remapping
// rules the boundary schema requires.
package report

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"tracepoint/internal/apperr"
	"tracepoint/internal/submissionid"
	"tracepoint/internal/verdict"
)

// Input is everything the converter needs to produce a verdict for a
// completed test phase.
type Input struct {
	SubmissionID string
	Status       string // status token; normalized, unknown tokens collapse to completed
	ArtifactPath string // empty or nonexistent means "no artifact found"
	Stdout       string
	Stderr       string
	Note         string
}

// normalizeStatus lowercases s and maps it onto the verdict's closed
// status set; anything it doesn't recognize collapses to completed,
// since an unrecognized token is assumed to mean the phase ran to
// completion and left the artifact for this converter to interpret.
func normalizeStatus(s string) verdict.Status {
	switch verdict.Status(strings.ToLower(strings.TrimSpace(s))) {
	case verdict.StatusCompleted, verdict.StatusCompileError, verdict.StatusTimedOut,
		verdict.StatusRunnerError, verdict.StatusResourceLimit:
		return verdict.Status(strings.ToLower(strings.TrimSpace(s)))
	default:
		return verdict.StatusCompleted
	}
}

// Convert builds the canonical verdict for Input. When the artifact
// does not exist it returns the empty-skeleton run the boundary schema
// mandates rather than an error: a missing artifact is the Runner's
// concern (it decides between resource_limit and runner_error), not
// the converter's.
func Convert(in Input) (verdict.Verdict, error) {
	if in.ArtifactPath == "" || !fileExists(in.ArtifactPath) {
		return emptySkeleton(in), nil
	}

	data, err := os.ReadFile(in.ArtifactPath)
	if err != nil {
		return verdict.Verdict{}, apperr.Wrapf(err, apperr.ParseFailure, "read artifact failed")
	}

	doc, err := parseTRX(data)
	if err != nil {
		return verdict.Verdict{}, apperr.Wrapf(err, apperr.ParseFailure, "parse trx failed")
	}

	return buildVerdict(in, doc), nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func emptySkeleton(in Input) verdict.Verdict {
	noTests := []verdict.TestResult{}
	return verdict.Verdict{
		SubmissionID: in.SubmissionID,
		Status:       normalizeStatus(in.Status),
		Run: &verdict.Run{
			OverallOutcome: verdict.OutcomeUnknown,
			Counters:       verdict.Counters{},
		},
		Tests: &noTests,
		Diagnostics: &verdict.Diagnostics{
			Stdout:  truncatedPtr(in.Stdout),
			Stderr:  truncatedPtr(in.Stderr),
			TrxPath: nil,
			Note:    verdict.NullableString(truncated(in.Note)),
		},
	}
}

func truncated(s string) string {
	out, _ := verdict.Truncate(s)
	return out
}

func truncatedPtr(s string) *string {
	return verdict.NullableString(truncated(s))
}

func buildVerdict(in Input, doc trxDocument) verdict.Verdict {
	lookup := buildTestDefLookup(doc.Defs.UnitTests)

	startedAt := parseTimestamp(doc.Times.Start)
	finishedAt := parseTimestamp(doc.Times.Finish)
	createdAt := parseTimestamp(doc.Times.Creation)

	run := &verdict.Run{
		TestRunID:      doc.ID,
		OverallOutcome: remapOutcome(doc.Summary.Outcome),
		CreatedAt:      createdAt,
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		DurationMs:     runDuration(doc.Times.Start, doc.Times.Finish),
		Counters:       remapCounters(doc.Summary.Counters),
	}

	tests := make([]verdict.TestResult, 0, len(doc.Results.UnitTestResults))
	for _, r := range doc.Results.UnitTestResults {
		tests = append(tests, buildTestResult(r, lookup))
	}

	stdout := doc.Summary.Output.StdOut
	if stdout == "" {
		stdout = in.Stdout
	}

	return verdict.Verdict{
		SubmissionID: in.SubmissionID,
		Status:       normalizeStatus(in.Status),
		Run:          run,
		Tests:        &tests,
		Diagnostics: &verdict.Diagnostics{
			Stdout:  truncatedPtr(stdout),
			Stderr:  truncatedPtr(in.Stderr),
			TrxPath: verdict.NullableString(in.ArtifactPath),
			Note:    verdict.NullableString(truncated(in.Note)),
		},
	}
}

type testDef struct {
	className          string
	fullyQualifiedName string
}

func buildTestDefLookup(defs []trxUnitTest) map[string]testDef {
	lookup := make(map[string]testDef, len(defs))
	for _, d := range defs {
		lookup[d.ID] = testDef{
			className:          d.Method.ClassName,
			fullyQualifiedName: d.Method.FullyQualifiedName,
		}
	}
	return lookup
}

func buildTestResult(r trxUnitTestResult, lookup map[string]testDef) verdict.TestResult {
	id := r.ExecutionID
	if id == "" {
		id = r.TestID
	}
	if id == "" {
		id = submissionid.New()
	}

	var className, fqn *string
	if def, ok := lookup[r.TestID]; ok {
		className = verdict.NullableString(def.className)
		fqn = verdict.NullableString(def.fullyQualifiedName)
	}

	message, stackTrace := truncatedOptional(r.Output.ErrorInfo.Message), truncatedOptional(r.Output.ErrorInfo.StackTrace)

	return verdict.TestResult{
		ID:                 id,
		Name:               truncated(r.TestName),
		ClassName:          className,
		FullyQualifiedName: fqn,
		Outcome:            remapOutcome(r.Outcome),
		DurationMs:         parseDurationMs(r.Duration),
		StartedAt:          parseTimestamp(r.StartTime),
		FinishedAt:         parseTimestamp(r.EndTime),
		Message:            message,
		StackTrace:         stackTrace,
	}
}

func truncatedOptional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return verdict.NullableString(truncated(s))
}

// remapOutcome applies the authoritative outcome mapping, including the
// intentional Timeout -> Failed remap that applies to both overall and
// per-test outcomes.
func remapOutcome(source string) verdict.Outcome {
	switch source {
	case "Passed":
		return verdict.OutcomePassed
	case "Failed":
		return verdict.OutcomeFailed
	case "Skipped", "NotExecuted":
		return verdict.OutcomeSkipped
	case "Timeout":
		return verdict.OutcomeFailed
	default:
		return verdict.OutcomeUnknown
	}
}

func remapCounters(c trxCounters) verdict.Counters {
	return verdict.Counters{
		Total:        c.Total,
		Executed:     c.Executed,
		Passed:       c.Passed,
		Failed:       c.Failed,
		Skipped:      c.NotExecuted,
		Error:        c.Error,
		Timeout:      c.Timeout,
		Aborted:      c.Aborted,
		Inconclusive: c.Inconclusive,
	}
}

// parseDurationMs parses an "HH:MM:SS.fffffff" duration string and
// rounds to milliseconds; unparseable input yields 0.
func parseDurationMs(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return 0
	}
	hours, err1 := strconv.ParseFloat(parts[0], 64)
	minutes, err2 := strconv.ParseFloat(parts[1], 64)
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	totalSeconds := hours*3600 + minutes*60 + seconds
	ms := int64(math.Round(totalSeconds * 1000))
	if ms < 0 {
		return 0
	}
	return ms
}

// parseTimestamp parses a round-trip ISO-8601 timestamp and re-emits it
// in round-trip form; unparseable input yields nil.
func parseTimestamp(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	out := t.Format(time.RFC3339Nano)
	return &out
}

// runDuration computes max(0, finish-start) in milliseconds when both
// timestamps parse; otherwise 0.
func runDuration(start, finish string) int64 {
	s, err1 := time.Parse(time.RFC3339Nano, strings.TrimSpace(start))
	f, err2 := time.Parse(time.RFC3339Nano, strings.TrimSpace(finish))
	if err1 != nil || err2 != nil {
		return 0
	}
	delta := f.Sub(s).Milliseconds()
	if delta < 0 {
		return 0
	}
	return delta
}
