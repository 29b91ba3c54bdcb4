package domain

import (
	"fmt"
	"strings"
)

// maxTraceLines bounds how many inference trace lines Episode.Trace shows.
const maxTraceLines = 5

// StepRecord is one transition of an episode.
type StepRecord struct {
	Action       string            `json:"action"`
	Kind         string            `json:"kind"`
	Reward       float64           `json:"reward"`
	Done         bool              `json:"done"`
	Candidates   int               `json:"candidates"`
	Cumulative   CumulativeRewards `json:"cumulative_rewards"`
	Discounted   float64           `json:"discounted_return"`
	Facts        []string          `json:"facts_asserted"`
}

// Episode is the outcome of a full perceive → normalize → score → quote
// run with goal tracking.
type Episode struct {
	ID    string `json:"id"`
	Mode  string `json:"mode"`
	Quote *Quote `json:"quote"`

	ActionsExecuted  []string          `json:"actions_executed"`
	Rewards          []float64         `json:"rewards"`
	CumulativeReward float64           `json:"cumulative_reward"`
	DiscountedReturn float64           `json:"discounted_return"`
	Cumulative       CumulativeRewards `json:"cumulative_rewards"`
	GoalAchieved     bool              `json:"goal_achieved"`

	InferredActions []string `json:"inferred_actions"`
	InferenceGoal   bool     `json:"inference_goal_achieved"`
	MissingFacts    []string `json:"missing_facts"`
	InferenceTrace  []string `json:"inference_trace"`

	History []StepRecord `json:"history"`
}

// Trace renders a human readable account of the episode.
func (e *Episode) Trace() string {
	var b strings.Builder
	b.WriteString("=== REASONING TRACE ===\n")
	fmt.Fprintf(&b, "Episode: %s\n\nActions Executed:\n", e.ID)
	for i, action := range e.ActionsExecuted {
		var r float64
		if i < len(e.Rewards) {
			r = e.Rewards[i]
		}
		fmt.Fprintf(&b, "  %d. %s (R=%.3f)\n", i+1, action, r)
	}
	fmt.Fprintf(&b, "\nCumulative Reward: %.3f\nGoal Achieved: %t\n", e.CumulativeReward, e.GoalAchieved)
	if len(e.MissingFacts) > 0 {
		fmt.Fprintf(&b, "Missing Facts: %s\n", strings.Join(e.MissingFacts, ", "))
	}
	if len(e.InferenceTrace) > 0 {
		b.WriteString("\nInference Trace:\n")
		for _, line := range e.InferenceTrace[:min(maxTraceLines, len(e.InferenceTrace))] {
			fmt.Fprintf(&b, "  - %s\n", line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// TrajectoryPoint is one (action, reward) pair of an exported trajectory.
type TrajectoryPoint struct {
	Action     string            `json:"action"`
	Reward     float64           `json:"reward"`
	Cumulative CumulativeRewards `json:"state"`
}

// Trajectory is the exportable sequence of transitions of an episode.
type Trajectory struct {
	EpisodeID    string            `json:"episode_id"`
	Points       []TrajectoryPoint `json:"trajectory"`
	TotalReturn  float64           `json:"total_return"`
	GoalAchieved bool              `json:"goal_achieved"`
}

// Trajectory exports the episode's transitions.
func (e *Episode) Trajectory() Trajectory {
	t := Trajectory{
		EpisodeID:    e.ID,
		Points:       make([]TrajectoryPoint, 0, len(e.History)),
		TotalReturn:  e.CumulativeReward,
		GoalAchieved: e.GoalAchieved,
	}
	for _, h := range e.History {
		t.Points = append(t.Points, TrajectoryPoint{Action: h.Action, Reward: h.Reward, Cumulative: h.Cumulative})
	}
	return t
}
