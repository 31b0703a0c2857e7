// Package sandboxcmd builds the exact docker argument vectors the judge
// core hands to os/exec for the restore and test phases. It never
// invokes a shell and never executes anything itself — it only builds
// argv, keeping command-template construction separate from the
// engine that runs it.
package sandboxcmd

import (
	"fmt"

	"github.com/google/shlex"

	"tracepoint/internal/apperr"
	"tracepoint/internal/sandboxspec"
)

const (
	containerMountPoint = "/workspace"
	cacheMountPoint     = "/nuget"
	containerInitFlag   = "--init"
)

// Config pins the parts of the sandbox contract that do not vary per
// submission: the image, the non-root uid/gid, and the resource
// ceilings applied identically to both phases.
type Config struct {
	Image               string
	User                string // "<uid>:<gid>", defaults to "1000:1000"
	Limits              sandboxspec.ResourceLimits
	ContainerNamePrefix string
	RestoreCommand      string // shell-style template, split with shlex
	TestCommand         string // shell-style template, split with shlex
}

func (c Config) withDefaults() Config {
	if c.User == "" {
		c.User = "1000:1000"
	}
	if c.Limits.CPUs == "" {
		c.Limits.CPUs = "1"
	}
	if c.Limits.MemoryMB == 0 {
		c.Limits.MemoryMB = 512
	}
	if c.Limits.PIDsLimit == 0 {
		c.Limits.PIDsLimit = 128
	}
	if c.ContainerNamePrefix == "" {
		c.ContainerNamePrefix = "tracepoint"
	}
	if c.RestoreCommand == "" {
		c.RestoreCommand = "dotnet restore"
	}
	if c.TestCommand == "" {
		c.TestCommand = `dotnet test --no-restore --logger "trx;LogFileName=results.trx"`
	}
	return c
}

// Builder produces docker argv for one submission's restore and test
// phases, bound to a fixed Config.
type Builder struct {
	cfg Config
}

// New creates a Builder with its defaults applied.
func New(cfg Config) *Builder {
	cfg = cfg.withDefaults()
	return &Builder{cfg: cfg}
}

// ContainerName returns the submission-scoped container name for phase.
func (b *Builder) ContainerName(submissionID string, phase sandboxspec.Phase) string {
	return fmt.Sprintf("%s-%s-%s", b.cfg.ContainerNamePrefix, phase, submissionID)
}

// RestoreArgs builds `docker run` argv for the restore phase: network
// enabled, no init process, dependency-fetch command.
func (b *Builder) RestoreArgs(submissionID, workDir, cacheDir string) ([]string, error) {
	if err := validateArgs(submissionID, workDir, cacheDir); err != nil {
		return nil, err
	}
	cmd, err := shlex.Split(b.cfg.RestoreCommand)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.InvalidParams, "parse restore command failed")
	}
	if len(cmd) == 0 {
		return nil, apperr.Newf(apperr.InvalidParams, "restore command %q is empty", b.cfg.RestoreCommand)
	}
	return b.baseArgs(submissionID, sandboxspec.PhaseRestore, workDir, cacheDir, true, false, cmd), nil
}

// TestArgs builds `docker run` argv for the test phase: no network, an
// init process to reap zombies, and the test command that writes
// results.trx.
func (b *Builder) TestArgs(submissionID, workDir, cacheDir string) ([]string, error) {
	if err := validateArgs(submissionID, workDir, cacheDir); err != nil {
		return nil, err
	}
	cmd, err := shlex.Split(b.cfg.TestCommand)
	if err != nil {
		return nil, apperr.Wrapf(err, apperr.InvalidParams, "parse test command failed")
	}
	if len(cmd) == 0 {
		return nil, apperr.Newf(apperr.InvalidParams, "test command %q is empty", b.cfg.TestCommand)
	}
	return b.baseArgs(submissionID, sandboxspec.PhaseTest, workDir, cacheDir, false, true, cmd), nil
}

// validateArgs checks the three identifiers every phase invocation needs
// before any docker argv is built from them.
func validateArgs(submissionID, workDir, cacheDir string) error {
	if submissionID == "" {
		return apperr.ValidationError("submission_id", "required")
	}
	if workDir == "" {
		return apperr.ValidationError("work_dir", "required")
	}
	if cacheDir == "" {
		return apperr.ValidationError("cache_dir", "required")
	}
	return nil
}

func (b *Builder) baseArgs(submissionID string, phase sandboxspec.Phase, workDir, cacheDir string, network, init bool, innerCmd []string) []string {
	args := []string{
		"run", "--rm",
		"--name", b.ContainerName(submissionID, phase),
	}
	if !network {
		args = append(args, "--network", "none")
	}
	if init {
		args = append(args, containerInitFlag)
	}
	args = append(args,
		"--user", b.cfg.User,
		fmt.Sprintf("--cpus=%s", b.cfg.Limits.CPUs),
		fmt.Sprintf("--memory=%dm", b.cfg.Limits.MemoryMB),
		fmt.Sprintf("--memory-swap=%dm", b.cfg.Limits.MemoryMB),
		fmt.Sprintf("--pids-limit=%d", b.cfg.Limits.PIDsLimit),
		"-v", workDir+":"+containerMountPoint,
		"-v", cacheDir+":"+cacheMountPoint,
		"-e", "NUGET_PACKAGES=" + cacheMountPoint,
		"-e", "DOTNET_SKIP_WORKLOAD_INTEGRITY_CHECK=1",
		"-e", "DOTNET_CLI_TELEMETRY_OPTOUT=1",
		"-e", "DOTNET_NOLOGO=1",
		"-w", containerMountPoint,
		b.cfg.Image,
	)
	return append(args, innerCmd...)
}

// KillArgs builds `docker kill` argv for best-effort container teardown.
func (b *Builder) KillArgs(submissionID string, phase sandboxspec.Phase) []string {
	return []string{"kill", b.ContainerName(submissionID, phase)}
}

// RemoveArgs builds `docker rm -f` argv for best-effort container teardown.
func (b *Builder) RemoveArgs(submissionID string, phase sandboxspec.Phase) []string {
	return []string{"rm", "-f", b.ContainerName(submissionID, phase)}
}
