package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elee1766/orbital/src/aisdk"
)

// State is a step of the per-turn search state machine.
type State string

const (
	StateIdle           State = "idle"
	StateNeedCheck      State = "need_check"
	StateSkip           State = "skip"
	StatePlanGeneration State = "plan_generation"
	StateExecution      State = "execution"
	StateFormatted      State = "formatted"
)

// HistoryTurns is how many prior messages the need check sees.
const HistoryTurns = 5

const defaultStageTimeout = 20 * time.Second

// Outcome is what one run of the orchestrator produced. Context is empty
// unless State is StateFormatted.
type Outcome struct {
	State     State
	NeedCheck NeedCheck
	Plan      Plan
	Results   []Result
	Context   string
	// Err is the first error absorbed along the way, kept for logging.
	Err error
}

// Augmented reports whether the turn gets injected search context.
func (o Outcome) Augmented() bool {
	return o.State == StateFormatted && o.Context != ""
}

// Config configures an Orchestrator.
type Config struct {
	Checker  NeedChecker
	Planner  Planner
	Searcher Searcher
	// Enricher is optional.
	Enricher     Enricher
	MaxSearches  int
	StageTimeout time.Duration
	// Observe, if set, is called on every state transition.
	Observe func(State)
	Logger  *slog.Logger
}

// Orchestrator runs NeedCheck, PlanGeneration, Execution and formatting
// for a turn. Every failure degrades to "no augmentation".
type Orchestrator struct {
	checker      NeedChecker
	planner      Planner
	searcher     Searcher
	enricher     Enricher
	maxSearches  int
	stageTimeout time.Duration
	observe      func(State)
	logger       *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSearches <= 0 || cfg.MaxSearches > MaxSearches {
		cfg.MaxSearches = MaxSearches
	}
	if cfg.StageTimeout <= 0 {
		cfg.StageTimeout = defaultStageTimeout
	}
	return &Orchestrator{
		checker:      cfg.Checker,
		planner:      cfg.Planner,
		searcher:     cfg.Searcher,
		enricher:     cfg.Enricher,
		maxSearches:  cfg.MaxSearches,
		stageTimeout: cfg.StageTimeout,
		observe:      cfg.Observe,
		logger:       logger.With("component", "search_orchestrator"),
	}
}

// Run decides whether userMessage needs retrieval and, if so, returns the
// formatted context. history holds the prior messages of the conversation,
// oldest first, without the new user turn. Run never fails.
func (o *Orchestrator) Run(ctx context.Context, userMessage string, history []*aisdk.Message) Outcome {
	logger := o.logger.With("method", "Run")
	out := Outcome{State: StateIdle}

	if o.checker == nil || o.searcher == nil {
		return o.transition(out, StateSkip)
	}

	out = o.transition(out, StateNeedCheck)
	check, err := o.checkNeed(ctx, userMessage, lastN(history, HistoryTurns))
	if err != nil {
		logger.Warn("need check failed, skipping search", "error", err)
		out.Err = err
		return o.transition(out, StateSkip)
	}
	out.NeedCheck = check
	if !check.NeedsSearch {
		logger.Debug("search not needed", "reason", check.Reason)
		return o.transition(out, StateSkip)
	}

	out = o.transition(out, StatePlanGeneration)
	out.Plan = o.plan(ctx, userMessage, history, &out)
	logger.Debug("search plan ready", "searches", len(out.Plan.Searches))

	out = o.transition(out, StateExecution)
	out.Results = o.execute(ctx, out.Plan)
	if len(out.Results) == 0 {
		logger.Info("search returned no results, skipping context")
		return o.transition(out, StateSkip)
	}

	out.Context = Format(out.Results)
	logger.Info("search context ready", "results", len(out.Results))
	return o.transition(out, StateFormatted)
}

func (o *Orchestrator) transition(out Outcome, s State) Outcome {
	out.State = s
	if o.observe != nil {
		o.observe(s)
	}
	return out
}

func (o *Orchestrator) checkNeed(ctx context.Context, msg string, history []*aisdk.Message) (NeedCheck, error) {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()
	return o.checker.CheckNeed(ctx, msg, history)
}

// plan asks the planner for a plan. Any failure falls back to searching
// for the raw user message.
func (o *Orchestrator) plan(ctx context.Context, msg string, history []*aisdk.Message, out *Outcome) Plan {
	if o.planner == nil {
		return FallbackPlan(msg)
	}

	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	plan, err := o.planner.Plan(ctx, msg, history)
	if err != nil {
		o.logger.Warn("planning failed, using single search", "error", err)
		if out.Err == nil {
			out.Err = err
		}
		return FallbackPlan(msg)
	}
	plan = plan.Normalize(o.maxSearches)
	if len(plan.Searches) == 0 {
		return FallbackPlan(msg)
	}
	return plan
}

// execute runs every search concurrently and waits for all of them. A
// failed search contributes no results.
func (o *Orchestrator) execute(ctx context.Context, plan Plan) []Result {
	ctx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	lists := make([][]Result, len(plan.Searches))
	var g errgroup.Group
	for i, req := range plan.Searches {
		i, req := i, req
		g.Go(func() error {
			results, err := o.searcher.Search(ctx, req)
			if err != nil {
				o.logger.Warn("search failed", "query", req.Query, "error", err)
				return nil
			}
			if req.ScrapeContent && o.enricher != nil {
				results = o.enricher.Enrich(ctx, results)
			}
			lists[i] = results
			return nil
		})
	}
	_ = g.Wait()

	return Dedupe(lists...)
}

func lastN(msgs []*aisdk.Message, n int) []*aisdk.Message {
	if len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
