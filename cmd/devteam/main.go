// Command devteam is the single entry point for the autonomous development
// workflow engine described in spec.md §6: it takes a user request, drives
// the engine to completion (or failure), and exits with the status code the
// spec names.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/devteam/internal/checkpoint"
	"github.com/fyrsmithlabs/devteam/internal/config"
	"github.com/fyrsmithlabs/devteam/internal/engine"
	"github.com/fyrsmithlabs/devteam/internal/knowledge"
	"github.com/fyrsmithlabs/devteam/internal/logging"
	"github.com/fyrsmithlabs/devteam/internal/retrieval"
	"github.com/fyrsmithlabs/devteam/internal/secretscan"
	"github.com/fyrsmithlabs/devteam/internal/server"
)

// Exit codes per spec.md §6.
const (
	exitComplete      = 0
	exitFailed        = 1
	exitUnrecoverable = 2
	exitCancelled     = 130
)

var (
	flagVerbose        bool
	flagMaxIterations  int
	flagReviewInterval int
	flagRepoRoot       string
	flagConfigPath     string
)

func main() {
	os.Exit(run())
}

// exitCode is set by runWorkflow and read after cmd.Execute returns, since
// cobra's RunE can only return an error, not an exit code.
var exitCode = exitComplete

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitUnrecoverable
	}
	return exitCode
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devteam [request]",
		Short: "Run the autonomous development-task workflow engine on a single request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exitCode = runWorkflow(cmd.Context(), args[0])
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "toggle debug-level event emission")
	cmd.PersistentFlags().IntVar(&flagMaxIterations, "max-iterations", 0, "cap the total number of planner rounds (0 = unbounded)")
	cmd.PersistentFlags().IntVar(&flagReviewInterval, "review-interval", 5, "completed tasks between periodic assessor reviews")
	cmd.PersistentFlags().StringVar(&flagRepoRoot, "repo-root", ".", "repository root the workflow operates on")
	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to the model-registry YAML")

	return cmd
}

func runWorkflow(ctx context.Context, request string) int {
	cfg, err := config.LoadWithFile(flagConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		return exitUnrecoverable
	}
	cfg.Engine.ReviewInterval = flagReviewInterval

	logCfg := logging.NewDefaultConfig()
	if flagVerbose {
		logCfg.Level = zapcore.DebugLevel
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logging:", err)
		return exitUnrecoverable
	}
	defer logger.Sync()
	zlog := logger.Underlying()

	invoker, err := buildInvoker(zlog, cfg)
	if err != nil {
		zlog.Error("failed to build agent invoker", zap.Error(err))
		return exitUnrecoverable
	}

	if cfg.Server.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		server.NewMetrics(reg)
		metricsSrv := server.New(cfg.Server.MetricsAddr, reg, zlog)
		metricsSrv.Start()
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 5 * time.Second
		}
		defer metricsSrv.Shutdown(shutdownTimeout)
	}

	normaliser := engine.NewNormaliser(zlog, nil)
	ledger := engine.NewRetryLedger()
	router := engine.NewRouter(ledger)
	dispatcher := engine.NewStreamDispatcher(engine.NewMemoryTransport())

	refreshKnowledge(ctx, zlog, cfg)

	scanner, err := secretscan.New(zlog)
	if err != nil {
		zlog.Warn("secret scanner unavailable, QA pre-step will be skipped", zap.Error(err))
	}

	budgets := cfg.Engine.TokenBudgets
	handlers := map[engine.NodeName]engine.NodeHandler{
		engine.NodeScopeAgent:       engine.NewScopeAgentNode(invoker, normaliser, budgets.ScopeAgent),
		engine.NodeTaskPlanner:      engine.NewTaskPlannerNode(invoker, normaliser, ledger, budgets.TaskPlanner, 5),
		engine.NodeImplementor:      engine.NewImplementorNode(invoker, normaliser, nil, budgets.Implementor),
		engine.NodeQA:               engine.NewQANode(invoker, normaliser, scannerHandle(scanner), budgets.QA),
		engine.NodeAssessor:         engine.NewAssessorNode(invoker, normaliser, budgets.Assessor),
		engine.NodeMarkComplete:     engine.NewMarkCompleteNode(ledger, normaliser),
		engine.NodeMarkFailed:       engine.NewMarkFailedNode(),
		engine.NodeIncrementAttempt: engine.NewIncrementAttemptNode(),
	}

	recovery := buildRecoveryHook(zlog, cfg)
	reporter := engine.NewReporter()

	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var cancelled atomic.Bool
	go func() {
		select {
		case <-sigCh:
			cancelled.Store(true)
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	state := engine.NewWorkflowState(request, flagRepoRoot, cfg.Engine.ReviewInterval, cfg.Engine.MaxAttempts)
	store := engine.NewStateStore(state)

	eng := engine.NewEngine(store, router, ledger, dispatcher, handlers, reporter, recovery, zlog, flagMaxIterations, cancelled.Load)

	final, report, err := eng.Run(runCtx)
	if cancelled.Load() {
		zlog.Warn("workflow cancelled", zap.Error(err))
		return exitCancelled
	}
	if err != nil {
		zlog.Error("workflow ended with unrecoverable error", zap.Error(err))
		return exitUnrecoverable
	}

	fmt.Println(report)

	switch final.Status {
	case engine.StatusComplete:
		return exitComplete
	case engine.StatusFailed:
		return exitFailed
	default:
		return exitUnrecoverable
	}
}

// scannerHandle returns a nil engine.SecretScanner when scanner is nil,
// avoiding a typed-nil interface value (a boxed *secretscan.Scanner(nil)
// would compare non-nil and defeat QANode's "scanner may be nil to skip
// the pre-step" contract).
func scannerHandle(scanner *secretscan.Scanner) engine.SecretScanner {
	if scanner == nil {
		return nil
	}
	return scanner
}

func buildInvoker(logger *zap.Logger, cfg *config.Config) (*engine.AgentInvoker, error) {
	roleEndpoints := []struct {
		role engine.Role
		ep   config.ModelEndpoint
	}{
		{engine.RolePrimary, cfg.Models.Primary},
		{engine.RoleSummarizer, cfg.Models.Summarizer},
		{engine.RoleResearch, cfg.Models.Research},
		{engine.RoleSupervisor, cfg.Models.Supervisor},
	}

	var bindings []engine.ModelBinding
	for _, re := range roleEndpoints {
		if re.ep.IsZero() {
			continue
		}
		model, err := engine.BuildModel(engine.EndpointConfig{
			Provider: re.ep.Provider,
			Model:    re.ep.Model,
			BaseURL:  re.ep.BaseURL,
			APIKey:   string(re.ep.APIKey),
		})
		if err != nil {
			return nil, fmt.Errorf("building model for role %q: %w", re.role, err)
		}
		bindings = append(bindings, engine.ModelBinding{Role: re.role, Model: model})
	}

	budgetByRole := map[engine.Role]int{
		engine.RolePrimary:    cfg.Engine.TokenBudgets.Implementor,
		engine.RoleSummarizer: cfg.Engine.TokenBudgets.Assessor,
		engine.RoleResearch:   cfg.Engine.TokenBudgets.TaskPlanner,
		engine.RoleSupervisor: cfg.Engine.TokenBudgets.ScopeAgent,
	}

	return engine.NewAgentInvoker(logger, bindings, budgetByRole, "cl100k_base", nil), nil
}

func buildRecoveryHook(logger *zap.Logger, cfg *config.Config) engine.RecoveryHook {
	svc, err := checkpoint.NewService(&checkpoint.Config{
		SnapshotDir:      cfg.Checkpoint.SnapshotDir,
		MaxContentSizeKB: cfg.Checkpoint.MaxContentSizeKB,
	}, logger)
	if err != nil {
		logger.Warn("checkpoint recovery hook unavailable", zap.Error(err))
		return nil
	}
	return checkpoint.RecoveryHook(svc)
}

// refreshKnowledge does a one-shot load of docs/knowledge into the
// configured retrieval adapter before the run starts; the fsnotify-backed
// knowledge.Watcher is for long-running deployments (e.g. behind the
// optional metrics server) and isn't started for a single CLI invocation.
func refreshKnowledge(ctx context.Context, logger *zap.Logger, cfg *config.Config) {
	if cfg.Retrieval.Provider != "chromem" {
		return
	}
	adapter, err := retrieval.NewChromemAdapter(cfg.Retrieval.Chromem.Path, cfg.Retrieval.Chromem.Collection, logger)
	if err != nil {
		logger.Warn("retrieval adapter unavailable, rag_search will return no results", zap.Error(err))
		return
	}
	loader := knowledge.NewLoader(flagRepoRoot+"/docs/knowledge", logger)
	n, err := loader.Refresh(ctx, adapter)
	if err != nil {
		logger.Warn("knowledge refresh failed", zap.Error(err))
		return
	}
	logger.Info("refreshed knowledge index", zap.Int("snippets", n))
}
