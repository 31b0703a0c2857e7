// Package runner implements the Runner: the state machine that
// orchestrates workspace provisioning, the restore and test sandbox
// phases, artifact discovery, and conversion into a single canonical
// verdict.
package runner

import (
	"context"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"tracepoint/internal/apperr"
	"tracepoint/internal/logger"
	"tracepoint/internal/process"
	"tracepoint/internal/report"
	"tracepoint/internal/sandboxcmd"
	"tracepoint/internal/sandboxspec"
	"tracepoint/internal/verdict"
	"tracepoint/internal/workspace"
)

const (
	restoreTimeout    = 60 * time.Second
	testTimeout       = 6 * time.Second
	maxArtifactBytes  = 2_000_000
	dockerBinary      = "docker"
	preferredArtifact = "results.trx"
)

// resourceLimitSignals are matched case-insensitively against the
// concatenation of captured stderr and stdout to detect that the
// sandbox killed the child for exceeding its resource ceiling.
var resourceLimitSignals = []string{
	"out of memory",
	"outofmemoryexception",
	"killed",
	"test host process crashed",
	"test run aborted",
}

// processExecutor is the subset of *process.Executor the Runner needs;
// narrowed to an interface so tests can substitute a fake child process
// without spawning docker.
type processExecutor interface {
	Run(ctx context.Context, file string, args []string, cwd string, timeout time.Duration) (process.Outcome, error)
}

// sandboxBuilder is the subset of *sandboxcmd.Builder the Runner needs.
type sandboxBuilder interface {
	RestoreArgs(submissionID, workDir, cacheDir string) ([]string, error)
	TestArgs(submissionID, workDir, cacheDir string) ([]string, error)
	KillArgs(submissionID string, phase sandboxspec.Phase) []string
	RemoveArgs(submissionID string, phase sandboxspec.Phase) []string
}

// workspaceManager is the subset of *workspace.Manager the Runner needs.
type workspaceManager interface {
	CreateWorkspace(ctx context.Context, submissionID string) (workspace.Paths, error)
}

// Runner drives one submission through the full pipeline.
type Runner struct {
	workspace  workspaceManager
	sandboxCmd sandboxBuilder
	exec       processExecutor
	keep       bool
}

// New builds a Runner wired to the given collaborators.
func New(ws *workspace.Manager, cmdBuilder *sandboxcmd.Builder, exec *process.Executor, keep bool) *Runner {
	return &Runner{workspace: ws, sandboxCmd: cmdBuilder, exec: exec, keep: keep}
}

// newForTest builds a Runner directly from interface collaborators,
// letting tests substitute fakes for the workspace, sandbox command
// builder, and process executor without touching docker or the
// filesystem outside a test's own temp directory.
func newForTest(ws workspaceManager, cmdBuilder sandboxBuilder, exec processExecutor, keep bool) *Runner {
	return &Runner{workspace: ws, sandboxCmd: cmdBuilder, exec: exec, keep: keep}
}

// Run executes the full pipeline for submissionID and returns the
// verdict document plus the process exit code the CLI must return.
func (r *Runner) Run(ctx context.Context, submissionID string) verdict.Result {
	paths, err := r.workspace.CreateWorkspace(ctx, submissionID)
	if err != nil {
		return verdict.RunnerError(submissionID, apperr.GetCode(err).String(), 0, 1, "", false, err.Error(), false)
	}
	defer workspace.Cleanup(ctx, paths.WorkDir, r.keep)

	restoreOutcome, err := r.runPhase(ctx, sandboxspec.PhaseRestore, submissionID, paths)
	if err != nil {
		return verdict.RunnerError(submissionID, "restore", 0, 1, "", false, err.Error(), false)
	}
	if restoreOutcome.TimedOut {
		r.killAndRemove(ctx, submissionID, sandboxspec.PhaseRestore)
		return verdict.Timeout(submissionID)
	}
	if restoreOutcome.ExitCode != 0 {
		return verdict.RunnerError(submissionID, "restore", restoreOutcome.ExitCode, 0,
			restoreOutcome.Stdout, restoreOutcome.StdoutTruncated, restoreOutcome.Stderr, restoreOutcome.StderrTruncated)
	}

	testOutcome, err := r.runPhase(ctx, sandboxspec.PhaseTest, submissionID, paths)
	if err != nil {
		return verdict.RunnerError(submissionID, "test", 0, 1, "", false, err.Error(), false)
	}
	if testOutcome.TimedOut {
		r.killAndRemove(ctx, submissionID, sandboxspec.PhaseTest)
		return verdict.Timeout(submissionID)
	}

	artifactPath, err := workspace.FindArtifact(paths.WorkDir, preferredArtifact)
	if err != nil {
		return verdict.RunnerError(submissionID, apperr.GetCode(err).String(), testOutcome.ExitCode, 0,
			testOutcome.Stdout, testOutcome.StdoutTruncated, testOutcome.Stderr, testOutcome.StderrTruncated)
	}

	if artifactPath == "" {
		if resourceLimitHeuristic(testOutcome) {
			return verdict.ResourceLimitProcess(submissionID, "sandbox likely killed the test process for exceeding resource limits",
				testOutcome.ExitCode, testOutcome.Stdout, testOutcome.StdoutTruncated, testOutcome.Stderr, testOutcome.StderrTruncated)
		}
		exitOverride := 0
		if testOutcome.ExitCode == 0 {
			exitOverride = 2
		}
		return verdict.RunnerError(submissionID, "test_missing_trx", testOutcome.ExitCode, exitOverride,
			testOutcome.Stdout, testOutcome.StdoutTruncated, testOutcome.Stderr, testOutcome.StderrTruncated)
	}

	info, statErr := os.Stat(artifactPath)
	if statErr == nil && info.Size() > maxArtifactBytes {
		return verdict.ResourceLimitArtifactTooLarge(submissionID, "test report artifact exceeds the size cap",
			testOutcome.ExitCode, info.Size(), maxArtifactBytes)
	}

	v, convErr := report.Convert(report.Input{
		SubmissionID: submissionID,
		Status:       string(verdict.StatusCompleted),
		ArtifactPath: artifactPath,
		Stdout:       testOutcome.Stdout,
		Stderr:       testOutcome.Stderr,
	})
	if convErr != nil {
		exitOverride := 0
		if testOutcome.ExitCode == 0 {
			exitOverride = 3
		}
		return verdict.RunnerError(submissionID, apperr.GetCode(convErr).String(), testOutcome.ExitCode, exitOverride,
			testOutcome.Stdout, testOutcome.StdoutTruncated, testOutcome.Stderr, testOutcome.StderrTruncated)
	}

	return verdict.Result{Verdict: v, ExitCode: testOutcome.ExitCode}
}

func (r *Runner) runPhase(ctx context.Context, phase sandboxspec.Phase, submissionID string, paths workspace.Paths) (process.Outcome, error) {
	var args []string
	var err error
	var timeout time.Duration

	switch phase {
	case sandboxspec.PhaseRestore:
		args, err = r.sandboxCmd.RestoreArgs(submissionID, paths.WorkDir, paths.PackageCacheDir)
		timeout = restoreTimeout
	case sandboxspec.PhaseTest:
		args, err = r.sandboxCmd.TestArgs(submissionID, paths.WorkDir, paths.PackageCacheDir)
		timeout = testTimeout
	default:
		return process.Outcome{}, apperr.Newf(apperr.InvalidParams, "unsupported phase: %s", phase)
	}
	if err != nil {
		return process.Outcome{}, err
	}

	logger.Info(ctx, "running sandbox phase", zap.String("phase", string(phase)), zap.String("submission_id", submissionID))
	return r.exec.Run(ctx, dockerBinary, args, paths.WorkDir, timeout)
}

// killAndRemove issues best-effort docker kill then rm for the named
// container; each is given its own 5s budget and all failures are
// swallowed, per the cleanup policy for timeout paths.
func (r *Runner) killAndRemove(ctx context.Context, submissionID string, phase sandboxspec.Phase) {
	_, _ = r.exec.Run(ctx, dockerBinary, r.sandboxCmd.KillArgs(submissionID, phase), ".", 5*time.Second)
	_, _ = r.exec.Run(ctx, dockerBinary, r.sandboxCmd.RemoveArgs(submissionID, phase), ".", 5*time.Second)
}

func resourceLimitHeuristic(outcome process.Outcome) bool {
	if outcome.ExitCode == 137 {
		return true
	}
	combined := strings.ToLower(outcome.Stderr + outcome.Stdout)
	for _, signal := range resourceLimitSignals {
		if strings.Contains(combined, signal) {
			return true
		}
	}
	return false
}
