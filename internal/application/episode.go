package application

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/domain"
	"github.com/ahrav/go-procure/internal/environment"
	"github.com/ahrav/go-procure/internal/inference"
)

// Episode actions, in execution order.
const (
	ActionPerceiveRetrieve = "A1_perceive_retrieve"
	ActionNormalize        = "A2_normalize"
	ActionEvaluateScore    = "A3_evaluate_score"
	ActionGenerateExplain  = "A4_generate_explain"
	ActionLearnRefine      = "A5_learn_refine"
)

// Completeness reported by each stepping action.
const (
	completenessRetrieved  = 0.25
	completenessNormalized = 0.50
	completenessScored     = 0.75
	completenessQuoted     = 1.0
)

// EpisodeQueries returns the query variants searched by an episode: the
// query as given, lowercased, and with spaces replaced by hyphens.
func EpisodeQueries(query string) []string {
	return []string{query, strings.ToLower(query), strings.ReplaceAll(query, " ", "-")}
}

// episode carries the per-request environment and knowledge base.
type episode struct {
	env         *environment.Environment
	engine      *inference.Engine
	out         *domain.Episode
	evidenceRan bool
	log         *zap.Logger
}

// RunEpisode runs the pipeline for req as the five-action episode. Each
// stage boundary asserts facts into a fresh knowledge base and steps a
// fresh environment; afterwards the inference engine reasons in mode and
// the goal state is read from the environment.
func (o *Orchestrator) RunEpisode(ctx context.Context, req domain.BuyerRequest, mode inference.Mode) (*domain.Episode, error) {
	req, err := domain.NewBuyerRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := inference.ParseMode(string(mode)); err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "Orchestrator.RunEpisode",
		trace.WithAttributes(
			attribute.String("episode.query", req.Query),
			attribute.String("episode.mode", string(mode)),
		))
	defer span.End()

	ep, err := o.newEpisode(req, mode)
	if err != nil {
		return nil, err
	}

	start := o.now()
	state, err := o.pipeline.Run(ctx, o.initialState(req, ep.out.ID, EpisodeQueries(req.Query)), ep.observe)
	if err != nil {
		o.recordFailure(span, ep.out.ID, err, o.now().Sub(start))
		return nil, err
	}

	o.learn(ctx, ep)

	res := ep.engine.Reason(mode)
	out := ep.out
	out.Quote = o.buildQuote(ctx, out.ID, req, state, o.now().Sub(start))
	out.Rewards = ep.env.Rewards()
	out.CumulativeReward = ep.env.CumulativeReward()
	out.DiscountedReturn = ep.env.DiscountedReturn()
	out.Cumulative = ep.env.Cumulative()
	out.GoalAchieved = ep.env.GoalAchieved()
	out.InferredActions = res.Actions
	out.InferenceGoal = res.GoalAchieved
	out.MissingFacts = res.MissingFacts
	out.InferenceTrace = res.Trace

	o.recordQuote(span, out.Quote)
	span.SetAttributes(
		attribute.Float64("episode.cumulative_reward", out.CumulativeReward),
		attribute.Bool("episode.goal_achieved", out.GoalAchieved),
	)
	o.log.Info("episode finished",
		zap.String("episode_id", out.ID),
		zap.Strings("actions", out.ActionsExecuted),
		zap.Float64("cumulative_reward", out.CumulativeReward),
		zap.Float64("discounted_return", out.DiscountedReturn),
		zap.Bool("goal_achieved", out.GoalAchieved),
		zap.Strings("missing_facts", out.MissingFacts),
	)
	if o.metrics != nil {
		o.metrics.RecordGauge("episode_cumulative_reward", out.CumulativeReward, map[string]string{"component": "environment"})
	}
	return out, nil
}

func (o *Orchestrator) newEpisode(req domain.BuyerRequest, mode inference.Mode) (*episode, error) {
	env, err := environment.New(o.envConfig, environment.WithLogger(o.log))
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	env.Reset(req)

	engine, err := inference.NewEngine(
		inference.WithRules(o.inferenceRules),
		inference.WithMaxRounds(o.maxRounds),
		inference.WithLogger(o.log),
	)
	if err != nil {
		return nil, fmt.Errorf("inference: %w", err)
	}
	engine.AddPercepts(percepts(req))

	return &episode{
		env:    env,
		engine: engine,
		log:    o.log,
		out: &domain.Episode{
			ID:              o.newID(),
			Mode:            string(mode),
			ActionsExecuted: []string{},
			History:         []domain.StepRecord{},
		},
	}, nil
}

// percepts are the facts known before any action runs. Only facts that
// hold are asserted, since chaining tests presence.
func percepts(req domain.BuyerRequest) map[string]any {
	p := map[string]any{
		"user_request_received": true,
		"budget_set":            req.Budget,
		"deadline_set":          req.DeadlineDays,
	}
	if len(req.PreferredVendors) > 0 {
		p["preferred_vendors_set"] = req.PreferredVendors
	}
	return p
}

// observe maps pipeline stages to episode actions.
func (ep *episode) observe(_ context.Context, stage domain.Stage, state domain.State) error {
	switch stage {
	case domain.StageRetrieve:
		offers, _ := domain.Get(state, domain.KeyOffers)
		res := environment.NewStepResult()
		res.Completeness = completenessRetrieved
		res.Candidates = make([]string, 0, len(offers))
		if len(offers) > 0 {
			res.TotalCost = 0
			for _, of := range offers {
				res.TotalCost += of.Price
				res.Candidates = append(res.Candidates, of.SKU)
			}
		}
		ep.step(ActionPerceiveRetrieve, environment.ActionQueryVendors, res,
			when(len(offers) > 0, "product_retrieved"))

	case domain.StageNormalize:
		cands, _ := domain.Get(state, domain.KeyCandidates)
		res := environment.NewStepResult()
		res.Completeness = completenessNormalized
		res.Candidates = skus(cands)
		priced := len(cands) > 0
		if len(cands) > 0 {
			res.TotalCost = 0
		}
		for _, c := range cands {
			res.TotalCost += c.Item.Price
			if !(c.Item.Price > 0) {
				priced = false
			}
			if !c.Item.HasSpec() {
				res.MissingSpecs++
			}
		}
		ep.step(ActionNormalize, environment.ActionNormalizeSpecs, res,
			when(len(cands) > 0, "specs_normalized"), when(priced, "price_available"))

	case domain.StageEvidence:
		ep.evidenceRan = true

	case domain.StageScoring:
		ranked, _ := domain.Get(state, domain.KeyCandidates)
		res := summarizeStep(ranked, completenessScored)
		ep.step(ActionEvaluateScore, environment.ActionScoreRank, res,
			when(ep.evidenceRan && len(ranked) > 0, "evidence_retrieved"),
			when(len(ranked) > 0, "stock_checked"))

	case domain.StageSelect:
		shortlist, _ := domain.Get(state, domain.KeyShortlist)
		res := summarizeStep(shortlist, completenessQuoted)
		found := len(shortlist) > 0
		ep.step(ActionGenerateExplain, environment.ActionBuildQuotation, res,
			when(found, "candidate_added"), when(found, "candidate_rewarded"), when(found, "vendor_confirmed"))
	}
	return nil
}

// summarizeStep reports the mean cost fitness and evidence of cands and
// the price, ETA and vendor of the leading candidate.
func summarizeStep(cands []*domain.Candidate, completeness float64) environment.StepResult {
	res := environment.NewStepResult()
	res.Completeness = completeness
	res.Candidates = skus(cands)
	if len(cands) == 0 {
		return res
	}
	var cost, evidence float64
	for _, c := range cands {
		cost += c.CostFitness
		evidence += c.EvidenceScore
	}
	n := float64(len(cands))
	res.CostFitness = cost / n
	res.EvidenceScore = evidence / n

	top := cands[0]
	res.TotalCost = top.Item.Price
	res.ETADays = top.Item.ETADays
	res.Vendor = top.Item.Vendor
	res.OutOfStock = top.HasFlag(domain.FlagOutOfStock)
	if top.HasFlag(domain.FlagSpecMissing) {
		res.MissingSpecs = 1
	}
	return res
}

func (ep *episode) step(action string, kind environment.ActionType, res environment.StepResult, facts ...string) {
	asserted := make([]string, 0, len(facts))
	for _, f := range facts {
		if f == "" {
			continue
		}
		ep.engine.Assert(domain.NewFact(f, true, action))
		asserted = append(asserted, f)
	}

	out := ep.env.Step(kind, res)
	ep.out.ActionsExecuted = append(ep.out.ActionsExecuted, action)
	ep.out.History = append(ep.out.History, domain.StepRecord{
		Action:     action,
		Kind:       kind.Name(),
		Reward:     out.Reward,
		Done:       out.Done,
		Candidates: len(res.Candidates),
		Cumulative: out.Info.Cumulative,
		Discounted: out.Info.DiscountedReturn,
		Facts:      asserted,
	})

	ep.log.Debug("episode action",
		zap.String("action", action),
		zap.Float64("reward", out.Reward),
		zap.Float64("total_cost", res.TotalCost),
		zap.Strings("facts", asserted),
	)
}

// learn is the feedback action. It never steps the environment: learning
// happens once the buyer has answered. Prior feedback is asserted as a
// fact when the store has any.
func (o *Orchestrator) learn(ctx context.Context, ep *episode) {
	ep.out.ActionsExecuted = append(ep.out.ActionsExecuted, ActionLearnRefine)
	if o.feedback == nil {
		return
	}
	stats, err := o.feedback.Statistics(ctx)
	if err != nil {
		o.log.Warn("feedback statistics unavailable", zap.Error(err))
		return
	}
	if stats.TotalDecisions > 0 {
		ep.engine.Assert(domain.NewFact("feedback_received", stats.TotalDecisions, ActionLearnRefine))
	}
}

func skus(cands []*domain.Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Item.SKU
	}
	return out
}

func when(ok bool, fact string) string {
	if ok {
		return fact
	}
	return ""
}
