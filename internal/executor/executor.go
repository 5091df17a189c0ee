package executor

import (
	"context"
	"fmt"
	"time"

	ferrors "github.com/Leonid-98/optimize-table/internal/errors"
	"github.com/Leonid-98/optimize-table/internal/logging"
	"github.com/Leonid-98/optimize-table/internal/metrics"
	"github.com/Leonid-98/optimize-table/internal/parser"
	"github.com/Leonid-98/optimize-table/internal/ssh"
	"github.com/Leonid-98/optimize-table/internal/target"
	"github.com/Leonid-98/optimize-table/internal/template"
)

// ExecutorConfig holds the parameters shared by every server of a run
type ExecutorConfig struct {
	Command   string    // Remote command template
	Databases []string  // Databases to optimize, at least one
	DryRun    bool      // Pass the dry-run flag to the remote script
	StartedAt time.Time // Start of the whole run; zero means when Run is called
}

// Executor runs the maintenance command on each server in turn and
// aggregates the parsed results.
type Executor struct {
	config    ExecutorConfig
	newClient ssh.Factory
	engine    *template.TemplateEngine
	logger    *logging.Logger
	now       func() time.Time
	observer  func(*metrics.ServerReport)
}

// NewExecutor creates an executor. newClient is called once per server.
func NewExecutor(config ExecutorConfig, newClient ssh.Factory, logger *logging.Logger) (*Executor, error) {
	if newClient == nil {
		return nil, ferrors.Setupf("no SSH client factory configured")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if _, err := template.BuildArgs(config.Databases, config.DryRun); err != nil {
		return nil, ferrors.NewSetupError("invalid database list", err)
	}
	if err := template.ValidateTemplate(config.Command); err != nil {
		return nil, ferrors.NewSetupError("invalid remote command", err)
	}

	engine, err := template.NewTemplateEngine()
	if err != nil {
		return nil, ferrors.NewSetupError("failed to load command templates", err)
	}

	return &Executor{
		config:    config,
		newClient: newClient,
		engine:    engine,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// SetClock replaces the wall clock used for elapsed-time measurement
func (e *Executor) SetClock(now func() time.Time) {
	e.now = now
}

// SetObserver registers a callback invoked after each server report is recorded
func (e *Executor) SetObserver(observer func(*metrics.ServerReport)) {
	e.observer = observer
}

// Command renders the remote command line for t
func (e *Executor) Command(t target.Target) (string, error) {
	ctx, err := template.NewTemplateContext(t, e.config.Databases, e.config.DryRun)
	if err != nil {
		return "", err
	}
	return e.engine.Render(e.config.Command, ctx)
}

// Execute opens one session to t, runs the command, and returns every line of
// its output. The connection is closed before Execute returns.
func (e *Executor) Execute(ctx context.Context, t target.Target) (*ssh.Result, error) {
	command, err := e.Command(t)
	if err != nil {
		return nil, ferrors.NewSetupError(fmt.Sprintf("failed to render command for %s", t), err)
	}

	client := e.newClient()
	defer client.Close()

	if err := client.Connect(ctx, t); err != nil {
		return nil, err
	}

	result, err := client.Execute(ctx, command)
	if err != nil {
		e.logger.LogExecutionError(t, err)
		return result, ferrors.NewConnectionError("remote command did not complete", err)
	}

	e.logger.LogExecution(t, result.ExitCode, len(result.Lines), result.Duration)
	if result.Stderr != "" {
		e.logger.LogRemoteStderr(t, result.Stderr)
	}

	return result, nil
}

// Run surveys targets sequentially and returns the finalized fleet report.
// Per-server connection failures are recorded in the report; only setup
// errors abort the run.
func (e *Executor) Run(ctx context.Context, targets []target.Target) (*metrics.FleetReport, error) {
	startedAt := e.config.StartedAt
	if startedAt.IsZero() {
		startedAt = e.now()
	}

	e.logger.LogRunStart(len(targets), e.config.Databases, e.config.DryRun)

	agg := metrics.NewAggregator()
	successCount, failureCount := 0, 0

	for _, t := range targets {
		report, err := e.survey(ctx, agg, t)
		if err != nil {
			return nil, err
		}
		if report.Succeeded() {
			successCount++
		} else {
			failureCount++
		}
		if e.observer != nil {
			e.observer(report)
		}
	}

	total := e.now().Sub(startedAt)
	e.logger.LogRunComplete(len(targets), successCount, failureCount, total)

	return agg.Finalize(total)
}

// survey handles a single server, from connect to recorded report
func (e *Executor) survey(ctx context.Context, agg *metrics.Aggregator, t target.Target) (*metrics.ServerReport, error) {
	start := e.now()

	// Keep the report complete when the run is interrupted.
	if err := ctx.Err(); err != nil {
		return agg.RecordFailure(t, metrics.Transport, err, 0)
	}

	result, err := e.Execute(ctx, t)
	if err != nil {
		if ferrors.IsSetupError(err) {
			return nil, err
		}
		reason := FailureReason(err)
		e.logger.LogConnectionError(t, err, reason.String())
		return agg.RecordFailure(t, reason, err, e.now().Sub(start))
	}

	results := parser.Parse(result.Lines)
	elapsed := e.now().Sub(start)
	e.logger.LogServerComplete(t, len(results), elapsed)

	return agg.Record(t, results, elapsed)
}

// FailureReason maps a connection or session error to the reason recorded
// in the report.
func FailureReason(err error) metrics.Reason {
	switch ferrors.TypeOf(err) {
	case ferrors.AuthenticationErrorType:
		return metrics.InvalidUser
	case ferrors.ResolutionErrorType:
		return metrics.InvalidHost
	default:
		return metrics.Transport
	}
}
