package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"counselor-assistant/internal/analytics"
	"counselor-assistant/internal/classifier"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/storage"
)

// FeedbackStatsParams параметры для получения статистики
type FeedbackStatsParams struct {
	Format string `json:"format,omitempty" mcp:"'text' (default) or 'json'"`
}

// InteractionHistoryParams параметры для истории взаимодействий
type InteractionHistoryParams struct {
	User  string `json:"user" mcp:"counselor username; 'Unknown' selects rows without a user"`
	Limit int    `json:"limit,omitempty" mcp:"newest N interactions to return (default: all)"`
}

// PredictParams параметры для предсказания депрессии
type PredictParams struct {
	Age           int    `json:"age" mcp:"patient age, 18-100"`
	DurationWeeks int    `json:"duration_weeks" mcp:"symptom duration in weeks, 1-52"`
	Severity      string `json:"severity" mcp:"Mild, Moderate or Severe"`
}

type InteractionLog interface {
	ListForUser(ctx context.Context, user string) []storage.Record
	ComputeStats(ctx context.Context) (analytics.Stats, error)
}

// Server exposes read-only views of the interaction log and the classifier.
type Server struct {
	history   InteractionLog
	predictor classifier.Predictor
}

func New(history InteractionLog, predictor classifier.Predictor) *Server {
	return &Server{history: history, predictor: predictor}
}

// Register adds every tool to srv.
func (s *Server) Register(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "feedback_stats",
		Description: "Returns aggregate feedback statistics over all counselor interactions",
	}, s.FeedbackStats)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "interaction_history",
		Description: "Lists the challenge/suggestions/feedback interactions of one counselor",
	}, s.InteractionHistory)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "predict_depression",
		Description: "Predicts depression risk from age, symptom duration and severity",
	}, s.PredictDepression)
}

func (s *Server) FeedbackStats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[FeedbackStatsParams]) (*mcp.CallToolResultFor[any], error) {
	stats, err := s.history.ComputeStats(ctx)
	if err != nil {
		logger.Log.Errorw("feedback_stats failed", "error", err)
		return errorResult(fmt.Sprintf("Failed to compute statistics: %v", err)), nil
	}
	if params.Arguments.Format == "json" {
		return jsonResult(stats)
	}
	return textResult(stats.Summary()), nil
}

func (s *Server) InteractionHistory(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[InteractionHistoryParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	if args.User == "" {
		return errorResult("user is required"), nil
	}
	records := s.history.ListForUser(ctx, args.User)
	if args.Limit > 0 && len(records) > args.Limit {
		records = records[len(records)-args.Limit:]
	}
	return jsonResult(records)
}

func (s *Server) PredictDepression(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[PredictParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	sev, err := classifier.ParseSeverity(args.Severity)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	p, err := s.predictor.Predict(args.Age, args.DurationWeeks, sev)
	switch {
	case errors.Is(err, classifier.ErrInvalidInput), errors.Is(err, classifier.ErrNoModel):
		return errorResult(err.Error()), nil
	case err != nil:
		logger.Log.Errorw("predict_depression failed", "error", err)
		return errorResult(fmt.Sprintf("Prediction failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"depression":  p.Label == 1,
		"probability": p.Probability,
	})
}

func textResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func jsonResult(v any) (*mcp.CallToolResultFor[any], error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return textResult(string(data)), nil
}
