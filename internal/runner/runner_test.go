package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tracepoint/internal/apperr"
	"tracepoint/internal/process"
	"tracepoint/internal/sandboxspec"
	"tracepoint/internal/verdict"
	"tracepoint/internal/workspace"
)

type fakeWorkspace struct {
	workDir string
	err     error
}

func (f *fakeWorkspace) CreateWorkspace(ctx context.Context, submissionID string) (workspace.Paths, error) {
	if f.err != nil {
		return workspace.Paths{}, f.err
	}
	return workspace.Paths{WorkDir: f.workDir, PackageCacheDir: filepath.Join(f.workDir, "_nuget-cache")}, nil
}

type fakeSandboxCmd struct{}

func (fakeSandboxCmd) RestoreArgs(submissionID, workDir, cacheDir string) ([]string, error) {
	return []string{"run", "restore"}, nil
}
func (fakeSandboxCmd) TestArgs(submissionID, workDir, cacheDir string) ([]string, error) {
	return []string{"run", "test"}, nil
}
func (fakeSandboxCmd) KillArgs(submissionID string, phase sandboxspec.Phase) []string {
	return []string{"kill", submissionID}
}
func (fakeSandboxCmd) RemoveArgs(submissionID string, phase sandboxspec.Phase) []string {
	return []string{"rm", "-f", submissionID}
}

type scriptedOutcome struct {
	outcome process.Outcome
	err     error
}

type fakeExec struct {
	calls     []string
	responses []scriptedOutcome
}

func (f *fakeExec) Run(ctx context.Context, file string, args []string, cwd string, timeout time.Duration) (process.Outcome, error) {
	idx := len(f.calls)
	f.calls = append(f.calls, args[1])
	if idx < len(f.responses) {
		return f.responses[idx].outcome, f.responses[idx].err
	}
	return process.Outcome{}, nil
}

func writeArtifact(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "results.trx"), []byte(contents), 0o644); err != nil {
		t.Fatalf("write artifact failed: %v", err)
	}
}

func TestRunAllPassEmitsCompletedVerdict(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, samplePassTRX)

	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 0}},
		{outcome: process.Outcome{ExitCode: 0}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusCompleted {
		t.Fatalf("Status = %q, want completed", result.Verdict.Status)
	}
	if result.ExitCode != 0 {
		t.Fatalf("ExitCode = %d, want 0", result.ExitCode)
	}
}

func TestRunMissingTemplateIsWorkspaceInitError(t *testing.T) {
	exec := &fakeExec{}
	r := newForTest(&fakeWorkspace{err: apperr.New(apperr.WorkspaceInit)}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusRunnerError {
		t.Fatalf("Status = %q, want runner_error", result.Verdict.Status)
	}
	if result.ExitCode != 1 {
		t.Fatalf("ExitCode = %d, want 1", result.ExitCode)
	}
	if *result.Verdict.Diagnostics.Phase != "workspace_init" {
		t.Fatalf("Phase = %q, want workspace_init", *result.Verdict.Diagnostics.Phase)
	}
}

func TestRunTestPhaseTimeoutEmitsMinimalTimeoutVerdict(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 0}},
		{outcome: process.Outcome{TimedOut: true, ExitCode: -1}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusTimedOut {
		t.Fatalf("Status = %q, want timed_out", result.Verdict.Status)
	}
	if result.ExitCode != 124 {
		t.Fatalf("ExitCode = %d, want 124", result.ExitCode)
	}
	if result.Verdict.Run != nil {
		t.Fatal("Run != nil, want nil on timeout")
	}
}

func TestRunOOMWithoutArtifactIsResourceLimit(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 0}},
		{outcome: process.Outcome{ExitCode: 0, Stderr: "Process was Killed by the OOM manager"}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusResourceLimit {
		t.Fatalf("Status = %q, want resource_limit", result.Verdict.Status)
	}
	if result.ExitCode != 137 {
		t.Fatalf("ExitCode = %d, want 137", result.ExitCode)
	}
}

func TestRunArtifactTooLargeIsResourceLimit(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, 3_000_000)
	writeArtifact(t, dir, string(big))

	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 0}},
		{outcome: process.Outcome{ExitCode: 0}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusResourceLimit {
		t.Fatalf("Status = %q, want resource_limit", result.Verdict.Status)
	}
	if *result.Verdict.Diagnostics.TrxBytes != 3_000_000 {
		t.Fatalf("TrxBytes = %d, want 3000000", *result.Verdict.Diagnostics.TrxBytes)
	}
	if result.Verdict.Tests != nil {
		t.Fatal("Tests != nil, want no tests array emitted")
	}
}

func TestRunTestExitsCleanlyWithNoArtifactIsRunnerError(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 0}},
		{outcome: process.Outcome{ExitCode: 0}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusRunnerError {
		t.Fatalf("Status = %q, want runner_error", result.Verdict.Status)
	}
	if result.ExitCode != 2 {
		t.Fatalf("ExitCode = %d, want 2", result.ExitCode)
	}
}

func TestRunRestoreFailureIsRunnerError(t *testing.T) {
	dir := t.TempDir()
	exec := &fakeExec{responses: []scriptedOutcome{
		{outcome: process.Outcome{ExitCode: 9, Stderr: "restore failed"}},
	}}
	r := newForTest(&fakeWorkspace{workDir: dir}, fakeSandboxCmd{}, exec, false)

	result := r.Run(context.Background(), "sub1")
	if result.Verdict.Status != verdict.StatusRunnerError {
		t.Fatalf("Status = %q, want runner_error", result.Verdict.Status)
	}
	if result.ExitCode != 9 {
		t.Fatalf("ExitCode = %d, want 9 (child exit propagated)", result.ExitCode)
	}
	if *result.Verdict.Diagnostics.Phase != "restore" {
		t.Fatalf("Phase = %q, want restore", *result.Verdict.Diagnostics.Phase)
	}
}

const samplePassTRX = `<?xml version="1.0" encoding="UTF-8"?>
<TestRun id="run-1" xmlns="http://microsoft.com/schemas/VisualStudio/TeamTest/2010">
  <Times creation="2026-08-06T10:00:00.0000000Z" start="2026-08-06T10:00:01.0000000Z" finish="2026-08-06T10:00:02.0000000Z"/>
  <ResultSummary outcome="Passed">
    <Counters total="1" executed="1" passed="1" failed="0" error="0" timeout="0" aborted="0" inconclusive="0" notExecuted="0"/>
  </ResultSummary>
  <TestDefinitions>
    <UnitTest id="test-1" name="AddsNumbers">
      <TestMethod className="Calc.Tests.AddTests" name="Calc.Tests.AddTests.AddsNumbers"/>
    </UnitTest>
  </TestDefinitions>
  <Results>
    <UnitTestResult executionId="exec-1" testId="test-1" testName="AddsNumbers" outcome="Passed" duration="00:00:00.0200070" startTime="2026-08-06T10:00:01.0000000Z" endTime="2026-08-06T10:00:01.0200000Z"/>
  </Results>
</TestRun>`
