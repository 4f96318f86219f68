package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/history"
	"counselor-assistant/internal/storage"
)

type stubPredictor struct{}

func (stubPredictor) Predict(age, weeks int, sev classifier.Severity) (classifier.Prediction, error) {
	if _, err := classifier.Features(age, weeks, sev); err != nil {
		return classifier.Prediction{}, err
	}
	return classifier.Prediction{Label: 0, Probability: 0.25}, nil
}

func newServer(t *testing.T) (*Server, *history.Log) {
	t.Helper()
	store, err := storage.NewCSVStore(filepath.Join(t.TempDir(), "history.csv"))
	require.NoError(t, err)
	log := history.NewLog(store)
	return New(log, stubPredictor{}), log
}

func text(t *testing.T, res *mcp.CallToolResultFor[any]) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestFeedbackStats(t *testing.T) {
	s, log := newServer(t)
	ctx := context.Background()
	rec, err := log.Append(ctx, "anxiety", []string{"breathing"}, "alice")
	require.NoError(t, err)
	require.NoError(t, log.AttachFeedback(ctx, rec.Timestamp, "3"))

	res, err := s.FeedbackStats(ctx, nil, &mcp.CallToolParamsFor[FeedbackStatsParams]{})
	require.NoError(t, err)
	assert.Contains(t, text(t, res), "Average rating: 3.00")

	res, err = s.FeedbackStats(ctx, nil, &mcp.CallToolParamsFor[FeedbackStatsParams]{Arguments: FeedbackStatsParams{Format: "json"}})
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &got))
	assert.EqualValues(t, 1, got["total_interactions"])
}

func TestInteractionHistory(t *testing.T) {
	s, log := newServer(t)
	ctx := context.Background()
	for _, c := range []string{"one", "two", "three"} {
		_, err := log.Append(ctx, c, []string{"s"}, "alice")
		require.NoError(t, err)
	}

	res, err := s.InteractionHistory(ctx, nil, &mcp.CallToolParamsFor[InteractionHistoryParams]{Arguments: InteractionHistoryParams{User: "alice", Limit: 2}})
	require.NoError(t, err)
	var records []storage.Record
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &records))
	require.Len(t, records, 2)
	assert.Equal(t, "two", records[0].Challenge)
	assert.Equal(t, "three", records[1].Challenge)

	res, err = s.InteractionHistory(ctx, nil, &mcp.CallToolParamsFor[InteractionHistoryParams]{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestPredictDepression(t *testing.T) {
	s, _ := newServer(t)
	ctx := context.Background()

	res, err := s.PredictDepression(ctx, nil, &mcp.CallToolParamsFor[PredictParams]{Arguments: PredictParams{Age: 30, DurationWeeks: 4, Severity: "Mild"}})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"depression": false`)

	res, err = s.PredictDepression(ctx, nil, &mcp.CallToolParamsFor[PredictParams]{Arguments: PredictParams{Age: 12, DurationWeeks: 4, Severity: "Mild"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.PredictDepression(ctx, nil, &mcp.CallToolParamsFor[PredictParams]{Arguments: PredictParams{Age: 30, DurationWeeks: 4, Severity: "Extreme"}})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
