package environment

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ahrav/go-procure/internal/domain"
)

var validate = validator.New()

// ActionType identifies a pipeline action reported to the environment.
type ActionType string

// The action space.
const (
	ActionQueryVendors         ActionType = "a1"
	ActionNormalizeSpecs       ActionType = "a2"
	ActionRetrieveLiterature   ActionType = "a3"
	ActionScoreRank            ActionType = "a4"
	ActionProposeSubstitutes   ActionType = "a5"
	ActionBuildQuotation       ActionType = "a6"
	ActionRequestClarification ActionType = "a7"
)

var actionNames = map[ActionType]string{
	ActionQueryVendors:         "query_vendors",
	ActionNormalizeSpecs:       "normalize_specs",
	ActionRetrieveLiterature:   "retrieve_literature",
	ActionScoreRank:            "score_rank",
	ActionProposeSubstitutes:   "propose_substitutes",
	ActionBuildQuotation:       "build_quotation",
	ActionRequestClarification: "request_clarification",
}

// Name returns the descriptive name of the action.
func (a ActionType) Name() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return string(a)
}

// Actions returns the action space in order.
func Actions() []ActionType {
	return []ActionType{
		ActionQueryVendors, ActionNormalizeSpecs, ActionRetrieveLiterature, ActionScoreRank,
		ActionProposeSubstitutes, ActionBuildQuotation, ActionRequestClarification,
	}
}

const (
	// DefaultGamma is the discount factor of the episode return.
	DefaultGamma = 0.95

	// perturbationRate is the per-candidate, per-step probability that an
	// item sells out in stochastic mode.
	perturbationRate = 0.05
)

// Config configures an Environment.
type Config struct {
	Reward RewardConfig `yaml:"reward" mapstructure:"reward"`
	Gamma  float64      `yaml:"gamma" mapstructure:"gamma" validate:"gt=0,lte=1"`

	// Stochastic enables random sell-outs between steps, drawn from a
	// generator seeded with Seed.
	Stochastic bool   `yaml:"stochastic" mapstructure:"stochastic"`
	Seed       uint64 `yaml:"seed" mapstructure:"seed"`
}

// DefaultConfig returns a deterministic environment configuration.
func DefaultConfig() Config {
	return Config{Reward: DefaultRewardConfig(), Gamma: DefaultGamma}
}

// Availability is the perturbed stock state of one SKU.
type Availability struct {
	Stock   int `json:"stock"`
	ETADays int `json:"eta_days"`
}

// Info accompanies every step outcome.
type Info struct {
	CumulativeReward float64                  `json:"cumulative_reward"`
	DiscountedReturn float64                  `json:"discounted_return"`
	GoalAchieved     bool                     `json:"goal_achieved"`
	Cumulative       domain.CumulativeRewards `json:"cumulative_rewards"`
	Terms            Terms                    `json:"terms"`
}

// Outcome is the result of one step.
type Outcome struct {
	Reward float64 `json:"reward"`
	Done   bool    `json:"done"`
	Info   Info    `json:"info"`
}

// Environment accumulates rewards for one episode. It is not safe for
// concurrent use; every request constructs its own.
type Environment struct {
	cfg Config
	rng *rand.Rand
	log *zap.Logger

	req          domain.BuyerRequest
	rewards      []float64
	cumulative   domain.CumulativeRewards
	candidates   []string
	availability map[string]Availability
}

// Option configures an Environment.
type Option func(*Environment)

// WithStochastic enables random sell-outs seeded with seed.
func WithStochastic(seed uint64) Option {
	return func(e *Environment) {
		e.cfg.Stochastic = true
		e.cfg.Seed = seed
	}
}

// WithLogger sets the logger used for step records.
func WithLogger(l *zap.Logger) Option {
	return func(e *Environment) { e.log = l }
}

// New validates cfg and returns an environment awaiting Reset.
func New(cfg Config, opts ...Option) (*Environment, error) {
	e := &Environment{cfg: cfg, log: zap.NewNop(), availability: make(map[string]Availability)}
	for _, opt := range opts {
		opt(e)
	}
	if err := validate.Struct(e.cfg); err != nil {
		return nil, fmt.Errorf("environment config: %w: %w", domain.ErrInvalidConfiguration, err)
	}
	if e.cfg.Stochastic {
		e.rng = rand.New(rand.NewPCG(e.cfg.Seed, e.cfg.Seed))
	}
	e.log.Debug("environment created", zap.Stringer("reward", e.cfg.Reward), zap.Bool("stochastic", e.cfg.Stochastic))
	return e, nil
}

// Reset starts a new episode for req, clearing the buckets, the reward
// history and the perturbed availability.
func (e *Environment) Reset(req domain.BuyerRequest) {
	e.req = req
	e.rewards = e.rewards[:0]
	e.cumulative = domain.CumulativeRewards{}
	e.candidates = nil
	clear(e.availability)
}

// Step folds the result of action into the episode.
func (e *Environment) Step(action ActionType, res StepResult) Outcome {
	terms := ComputeTerms(e.req, res)
	reward := e.cfg.Reward.Reward(terms)
	e.rewards = append(e.rewards, reward)

	e.cumulative.Cost += res.CostFitness
	e.cumulative.Evidence += res.EvidenceScore
	e.cumulative.Completeness = res.Completeness

	if res.Candidates != nil {
		e.candidates = slices.Clone(res.Candidates)
	}
	if e.cfg.Stochastic {
		e.perturb()
	}

	done := e.cfg.Reward.CheckGoalState(e.cumulative)
	out := Outcome{
		Reward: reward,
		Done:   done,
		Info: Info{
			CumulativeReward: e.CumulativeReward(),
			DiscountedReturn: e.DiscountedReturn(),
			GoalAchieved:     done,
			Cumulative:       e.cumulative,
			Terms:            terms,
		},
	}
	e.log.Debug("environment step",
		zap.String("action", action.Name()),
		zap.Float64("reward", reward),
		zap.Float64("cumulative_cost", e.cumulative.Cost),
		zap.Float64("cumulative_evidence", e.cumulative.Evidence),
		zap.Float64("completeness", e.cumulative.Completeness),
		zap.Bool("done", done))
	return out
}

func (e *Environment) perturb() {
	for _, sku := range e.candidates {
		if e.rng.Float64() < perturbationRate {
			e.availability[sku] = Availability{Stock: 0, ETADays: 7 + e.rng.IntN(23)}
			e.log.Debug("external change", zap.String("sku", sku), zap.Int("eta_days", e.availability[sku].ETADays))
		}
	}
}

// CheckGoalState reports whether cum meets the configured thresholds.
func (e *Environment) CheckGoalState(cum domain.CumulativeRewards) bool {
	return e.cfg.Reward.CheckGoalState(cum)
}

// GoalAchieved reports whether the current buckets meet the thresholds.
func (e *Environment) GoalAchieved() bool { return e.CheckGoalState(e.cumulative) }

// Cumulative returns the current buckets.
func (e *Environment) Cumulative() domain.CumulativeRewards { return e.cumulative }

// Rewards returns the instantaneous rewards seen so far.
func (e *Environment) Rewards() []float64 { return slices.Clone(e.rewards) }

// CumulativeReward returns the undiscounted sum of rewards.
func (e *Environment) CumulativeReward() float64 {
	var sum float64
	for _, r := range e.rewards {
		sum += r
	}
	return sum
}

// DiscountedReturn returns Σ γ^t · r_t over the episode so far.
func (e *Environment) DiscountedReturn() float64 {
	var sum float64
	for t, r := range e.rewards {
		sum += math.Pow(e.cfg.Gamma, float64(t)) * r
	}
	return sum
}

// Availability returns the perturbed availability of a SKU, if any.
func (e *Environment) Availability(sku string) (Availability, bool) {
	a, ok := e.availability[sku]
	return a, ok
}
