package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-procure/internal/domain"
)

// writeConfig points the feedback store at a temporary database.
func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "procure.yaml")
	cfg := "log:\n  level: error\nfeedback:\n  dsn: " + filepath.Join(dir, "feedback.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuoteCommand_JSON(t *testing.T) {
	// Given the built-in catalog
	cfg := writeConfig(t)

	// When a quote is requested as JSON
	out, err := run(t, "--config", cfg, "quote", "taq polymerase", "--budget", "150", "--json")

	// Then a selection within budget is returned
	require.NoError(t, err)
	var q domain.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	require.NotEmpty(t, q.Candidates)
	require.NotNil(t, q.Selected)
	assert.LessOrEqual(t, q.Selected.Item.Price, 150.0)
	assert.Contains(t, q.Notes, "supplier items")
}

func TestQuoteCommand_Table(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "quote", "taq polymerase", "--budget", "150", "--vendor", "Promega")

	require.NoError(t, err)
	assert.Contains(t, out, "SKU")
	assert.Contains(t, out, "Recommended: ")
	assert.Contains(t, out, "Notes: ")
}

func TestQuoteCommand_RejectsBadInput(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "quote", "taq")
	assert.Error(t, err, "budget is required")

	_, err = run(t, "--config", cfg, "quote", "taq", "--budget", "100", "--weights", "0.5,0.5")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestEpisodeCommand(t *testing.T) {
	cfg := writeConfig(t)

	out, err := run(t, "--config", cfg, "episode", "taq polymerase", "--budget", "150", "--mode", "hybrid", "--json")

	require.NoError(t, err)
	var ep domain.Episode
	require.NoError(t, json.Unmarshal([]byte(out), &ep))
	assert.Len(t, ep.ActionsExecuted, 5)
	assert.Len(t, ep.Rewards, 4)
	assert.Equal(t, "hybrid", ep.Mode)

	_, err = run(t, "--config", cfg, "episode", "taq", "--budget", "150", "--mode", "sideways")
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}

func TestFeedbackCommands(t *testing.T) {
	// Given a quote the buyer answered
	cfg := writeConfig(t)
	out, err := run(t, "--config", cfg, "quote", "taq polymerase", "--budget", "150", "--json")
	require.NoError(t, err)
	var q domain.Quote
	require.NoError(t, json.Unmarshal([]byte(out), &q))
	require.NotNil(t, q.Selected)

	// When the selection is recorded
	out, err = run(t, "--config", cfg, "feedback", "record",
		"--query", "taq polymerase", "--budget", "150",
		"--selected", q.Selected.Item.SKU, "--rating", "5", "--json")
	require.NoError(t, err)
	var sel domain.Selection
	require.NoError(t, json.Unmarshal([]byte(out), &sel))
	assert.True(t, sel.Agreed())

	// Then the statistics count it
	out, err = run(t, "--config", cfg, "feedback", "stats", "--json")
	require.NoError(t, err)
	var stats domain.FeedbackStatistics
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.TotalDecisions)
	assert.Equal(t, 5.0, stats.AvgRating)

	out, err = run(t, "--config", cfg, "feedback", "vendors")
	require.NoError(t, err)
	assert.Contains(t, out, q.Selected.Item.Vendor)

	_, err = run(t, "--config", cfg, "feedback", "record",
		"--query", "taq polymerase", "--budget", "150", "--selected", "NOPE")
	assert.ErrorIs(t, err, domain.ErrUnknownSKU)
}
