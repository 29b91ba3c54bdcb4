package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/ahrav/go-procure/infrastructure/feedback"
	"github.com/ahrav/go-procure/internal/domain"
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func printQuote(out io.Writer, q *domain.Quote, asJSON bool) error {
	if asJSON {
		return printJSON(out, q)
	}
	_, _ = fmt.Fprintf(out, "Quote %s for %q (budget %.2f %s)\n\n", q.ID, q.Request.Query, q.Request.Budget, q.Request.Currency)
	if len(q.Candidates) > 0 {
		formatCandidates(out, q)
		_, _ = fmt.Fprintln(out)
	}
	if q.Selected != nil {
		_, _ = fmt.Fprintf(out, "Recommended: %s %s (%s)\n", q.Selected.Item.SKU, q.Selected.Item.Name, q.Selected.Item.Vendor)
		for _, r := range q.Selected.Rationales {
			_, _ = fmt.Fprintf(out, "  - %s\n", r)
		}
		_, _ = fmt.Fprintln(out)
	}
	_, _ = fmt.Fprintf(out, "Notes: %s\n", q.Notes)
	return nil
}

func formatCandidates(out io.Writer, q *domain.Quote) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tSKU\tVENDOR\tPRICE\tETA\tCOST\tEVIDENCE\tAVAIL\tTOTAL\tFLAGS")
	_, _ = fmt.Fprintln(w, "-\t---\t------\t-----\t---\t----\t--------\t-----\t-----\t-----")
	for i, c := range q.Candidates {
		flags := make([]string, len(c.Flags))
		for j, f := range c.Flags {
			flags[j] = string(f)
		}
		marker := ""
		if q.Selected != nil && c.Item.SKU == q.Selected.Item.SKU {
			marker = "*"
		}
		_, _ = fmt.Fprintf(w, "%d%s\t%s\t%s\t%.2f\t%dd\t%.3f\t%.3f\t%.3f\t%.3f\t%s\n",
			i+1, marker,
			c.Item.SKU,
			c.Item.Vendor,
			c.Item.Price,
			c.Item.ETADays,
			c.CostFitness,
			c.EvidenceScore,
			c.AvailabilityScore,
			c.TotalScore,
			strings.Join(flags, ","),
		)
	}
	_ = w.Flush()
}

func printEpisode(out io.Writer, ep *domain.Episode, asJSON, withTrace bool) error {
	if asJSON {
		return printJSON(out, ep)
	}
	if err := printQuote(out, ep.Quote, false); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ACTION\tKIND\tREWARD\tCANDIDATES\tFACTS")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t----------\t-----")
	for _, h := range ep.History {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\t%s\n", h.Action, h.Kind, h.Reward, h.Candidates, strings.Join(h.Facts, ","))
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nCumulative reward %.3f, discounted %.3f\n", ep.CumulativeReward, ep.DiscountedReturn)
	_, _ = fmt.Fprintf(out, "Buckets: cost %.3f, evidence %.3f, completeness %.2f\n",
		ep.Cumulative.Cost, ep.Cumulative.Evidence, ep.Cumulative.Completeness)
	_, _ = fmt.Fprintf(out, "Goal state reached: %t (%s mode inference: %t)\n", ep.GoalAchieved, ep.Mode, ep.InferenceGoal)
	if len(ep.MissingFacts) > 0 {
		_, _ = fmt.Fprintf(out, "Missing facts: %s\n", strings.Join(ep.MissingFacts, ", "))
	}
	if withTrace {
		_, _ = fmt.Fprintf(out, "\n%s", ep.Trace())
	}
	return nil
}

func printSelection(out io.Writer, sel domain.Selection, asJSON bool) error {
	if asJSON {
		return printJSON(out, sel)
	}
	_, _ = fmt.Fprintf(out, "Recorded %s for %q (recommended %s, agreed %t, rating %d)\n",
		sel.SelectedSKU, sel.Query, sel.RecommendedSKU, sel.Agreed(), sel.Rating)
	return nil
}

func printStatistics(out io.Writer, stats domain.FeedbackStatistics, asJSON bool) error {
	if asJSON {
		return printJSON(out, stats)
	}
	if stats.TotalDecisions == 0 {
		_, _ = fmt.Fprintln(out, "No feedback recorded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Decisions\t%d\n", stats.TotalDecisions)
	_, _ = fmt.Fprintf(w, "Agreement\t%.1f%%\n", stats.AgreementRate)
	_, _ = fmt.Fprintf(w, "Ratings\t%d\n", stats.TotalRatings)
	_, _ = fmt.Fprintf(w, "Average rating\t%.2f\n", stats.AvgRating)
	return eris.Wrap(w.Flush(), "flush")
}

func printWeights(out io.Writer, user domain.Weights, prefs feedback.Preferences, adapted domain.Weights, asJSON bool) error {
	if asJSON {
		return printJSON(out, struct {
			User        domain.Weights       `json:"user"`
			Preferences feedback.Preferences `json:"learned"`
			Adapted     domain.Weights       `json:"adapted"`
		}{user, prefs, adapted})
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tCOST\tEVIDENCE\tAVAIL")
	_, _ = fmt.Fprintln(w, "------\t----\t--------\t-----")
	row := func(name string, wt domain.Weights) {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%.2f\t%.2f\n", name, wt.Cost, wt.Evidence, wt.Availability)
	}
	row("user", user)
	row(fmt.Sprintf("learned (confidence %.2f)", prefs.Confidence), prefs.Weights)
	row("adapted", adapted)
	return eris.Wrap(w.Flush(), "flush")
}

func printVendors(out io.Writer, vendors []feedback.VendorStats, asJSON bool) error {
	if asJSON {
		return printJSON(out, vendors)
	}
	if len(vendors) == 0 {
		_, _ = fmt.Fprintln(out, "No feedback recorded.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VENDOR\tSELECTIONS\tRATE\tAVG_RATING\tAVG_PRICE")
	_, _ = fmt.Fprintln(w, "------\t----------\t----\t----------\t---------")
	for _, v := range vendors {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.1f%%\t%.2f\t%.2f\n", v.Vendor, v.Selections, v.SelectionRate, v.AvgRating, v.AvgPrice)
	}
	return eris.Wrap(w.Flush(), "flush")
}
