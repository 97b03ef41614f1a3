// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/probeworks/shopflow-cli/api/schemas"
	"github.com/probeworks/shopflow-cli/internal/browser"
	"github.com/probeworks/shopflow-cli/internal/config"
	"github.com/probeworks/shopflow-cli/internal/pages"
)

// EnvProvider hands the runner an isolated page environment per scenario
// plus the context the scenario must run under and a release func for
// its session.
type EnvProvider interface {
	ScenarioEnv(ctx context.Context) (env *pages.Env, runCtx context.Context, release func(), err error)
}

// SessionEnvProvider is the production provider: one browser tab per
// scenario, all sharing the navigation rate limiter.
type SessionEnvProvider struct {
	Manager *browser.Manager
	Cfg     *config.Config
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

// sessionCloseGrace bounds how long a finished scenario may spend
// tearing its tab down.
const sessionCloseGrace = 10 * time.Second

func (p *SessionEnvProvider) ScenarioEnv(ctx context.Context) (*pages.Env, context.Context, func(), error) {
	sess, err := p.Manager.NewSession(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("browser session: %w", err)
	}
	env := pages.NewEnv(browser.NewCDPExecutor(), p.Cfg, p.Limiter, p.Logger)
	release := func() {
		cctx, cancel := context.WithTimeout(context.Background(), sessionCloseGrace)
		defer cancel()
		if cerr := sess.Close(cctx); cerr != nil {
			p.Logger.Warn("Session closed uncleanly.", zap.Error(cerr))
		}
	}
	return env, sess.Context(), release, nil
}

// Runner executes one scenario per keyword, each in its own session,
// with bounded parallelism.
type Runner struct {
	provider EnvProvider
	cfg      *config.Config
	logger   *zap.Logger
	version  string
	sink     chan<- schemas.CheckResult
}

// NewRunner wires a runner over a provider.
func NewRunner(provider EnvProvider, cfg *config.Config, version string, logger *zap.Logger) *Runner {
	return &Runner{
		provider: provider,
		cfg:      cfg,
		logger:   logger.Named("runner"),
		version:  version,
	}
}

// WithCheckSink streams every recorded check into ch as scenarios
// finish. The caller owns the channel's lifecycle.
func (r *Runner) WithCheckSink(ch chan<- schemas.CheckResult) *Runner {
	r.sink = ch
	return r
}

// Run executes the keywords and assembles the run envelope. The group
// bounds parallelism only; one scenario's failure never cancels the
// others, so workers always return nil and failures live in the results.
func (r *Runner) Run(ctx context.Context, keywords []string) (*schemas.RunEnvelope, error) {
	if len(keywords) == 0 {
		keywords = []string{r.cfg.Flow.Keyword}
	}

	envelope := &schemas.RunEnvelope{
		RunID:     uuid.NewString(),
		Tool:      "shopflow-cli",
		Version:   r.version,
		Target:    r.cfg.Target.BaseURL,
		StartedAt: time.Now().UTC(),
		Scenarios: make([]schemas.ScenarioResult, len(keywords)),
	}
	r.logger.Info("Run starting.",
		zap.String("run_id", envelope.RunID),
		zap.Strings("keywords", keywords),
		zap.Int("parallel", r.cfg.Flow.Parallel))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Flow.Parallel)
	for i, keyword := range keywords {
		g.Go(func() error {
			result := r.runOne(gctx, keyword)
			envelope.Scenarios[i] = result
			r.drainChecks(gctx, result.Checks)
			return nil
		})
	}
	// Workers never return errors; Wait only joins them.
	_ = g.Wait()

	envelope.CompletedAt = time.Now().UTC()
	passed, failed, errored := envelope.Tally()
	r.logger.Info("Run complete.",
		zap.Int("passed", passed), zap.Int("failed", failed), zap.Int("errored", errored))
	return envelope, ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, keyword string) schemas.ScenarioResult {
	env, runCtx, release, err := r.provider.ScenarioEnv(ctx)
	if err != nil {
		r.logger.Error("Could not build a scenario environment.",
			zap.String("keyword", keyword), zap.Error(err))
		return schemas.ScenarioResult{
			ScenarioID:     uuid.NewString(),
			Keyword:        keyword,
			Status:         schemas.StatusError,
			FailureMessage: fmt.Sprintf("scenario environment: %v", err),
			StartedAt:      time.Now().UTC(),
		}
	}
	defer release()
	return NewFlow(env, keyword, r.logger).Run(runCtx)
}

// drainChecks forwards checks to the sink when one is attached.
func (r *Runner) drainChecks(ctx context.Context, checks []schemas.CheckResult) {
	if r.sink == nil {
		return
	}
	for _, c := range checks {
		select {
		case r.sink <- c:
		case <-ctx.Done():
			return
		}
	}
}
