package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"tracepoint/internal/apperr"
	"tracepoint/internal/config"
	"tracepoint/internal/logger"
	"tracepoint/internal/process"
	"tracepoint/internal/runner"
	"tracepoint/internal/sandboxcmd"
	"tracepoint/internal/submissionid"
	"tracepoint/internal/verdict"
	"tracepoint/internal/workspace"
)

const defaultConfigPath = "configs/judge-core.yaml"

func main() {
	os.Exit(run())
}

// run parses the command line by hand rather than with the flag
// package: the contract requires "--keep" to be recognized in any case
// and every other argument to be silently ignored, which flag.Parse's
// unknown-flag error would violate.
func run() int {
	configPath, keepFlag := parseArgs(os.Args[1:])

	// Minted before config/logger init so every failure path, even one
	// that precedes a working logger, still has an id to report against.
	id := submissionid.New()

	appCfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return emitVerdict(verdict.RunnerError(id, "config_load", 0, 1, "", false, err.Error(), false))
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return emitVerdict(verdict.RunnerError(id, "logger_init", 0, 1, "", false, err.Error(), false))
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx := logger.WithSubmissionID(context.Background(), id)

	cwd, err := os.Getwd()
	if err != nil {
		logger.Error(ctx, "resolve cwd failed", zap.Error(err))
		return emitVerdict(verdict.RunnerError(id, "getwd", 0, 1, "", false, err.Error(), false))
	}

	ws, err := workspace.New(cwd)
	if err != nil {
		logger.Error(ctx, "resolve workspace manager failed", zap.Error(err))
		return emitVerdict(verdict.RunnerError(id, apperr.GetCode(err).String(), 0, 1, "", false, err.Error(), false))
	}

	cmdBuilder := sandboxcmd.New(appCfg.SandboxBuilderConfig())
	exec := process.New()

	r := runner.New(ws, cmdBuilder, exec, keepFlag)
	result := r.Run(ctx, id)

	return emitVerdict(result)
}

// emitVerdict marshals a verdict.Result to stdout and returns its exit
// code. This is the sole place the process writes its verdict document,
// so every return path in run() funnels through it.
func emitVerdict(result verdict.Result) int {
	doc, err := json.Marshal(result.Verdict)
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal verdict failed: %v\n", err)
		return 1
	}
	fmt.Println(string(doc))
	return result.ExitCode
}

func parseArgs(args []string) (configPath string, keep bool) {
	configPath = defaultConfigPath
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case strings.EqualFold(a, "--keep"):
			keep = true
		case strings.EqualFold(a, "--config"):
			if i+1 < len(args) {
				configPath = args[i+1]
				i++
			}
		case strings.HasPrefix(strings.ToLower(a), "--config="):
			configPath = a[len("--config="):]
		}
	}
	return configPath, keep
}
