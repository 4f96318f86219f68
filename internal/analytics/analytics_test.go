package analytics

import (
	"strings"
	"testing"

	"counselor-assistant/internal/storage"
)

func TestCompute(t *testing.T) {
	// Тестовые записи: две оценки, одна пустая, одна нечисловая
	records := []storage.Record{
		{Timestamp: "2024-01-15T10:00:00.000001", User: "alice", Feedback: "4"},
		{Timestamp: "2024-01-15T11:00:00.000001", User: "alice", Feedback: ""},
		{Timestamp: "2024-01-15T12:00:00.000001", User: "bob", Feedback: "5.0"},
		{Timestamp: "garbage", User: "", Feedback: "great"},
	}

	stats := Compute(records)

	if stats.TotalInteractions != 4 {
		t.Errorf("Expected 4 interactions, got %d", stats.TotalInteractions)
	}
	if stats.FeedbackGiven != 2 {
		t.Errorf("Expected 2 feedback, got %d", stats.FeedbackGiven)
	}
	if stats.AverageRating == nil || *stats.AverageRating != 4.5 {
		t.Errorf("Expected average 4.5, got %v", stats.AverageRating)
	}
	if stats.FeedbackRate != 50 {
		t.Errorf("Expected rate 50, got %v", stats.FeedbackRate)
	}
	if stats.UniqueUsers != 3 {
		t.Errorf("Expected 3 users (alice, bob, Unknown), got %d", stats.UniqueUsers)
	}
	if stats.Distribution[4] != 1 || stats.Distribution[5] != 1 {
		t.Errorf("Unexpected distribution %v", stats.Distribution)
	}
	if len(stats.Series) != 2 {
		t.Errorf("Expected 2 series points, got %d", len(stats.Series))
	}
}

func TestCompute_OutOfScaleRatings(t *testing.T) {
	records := []storage.Record{
		{Timestamp: "t1", Feedback: "-7"},
		{Timestamp: "t2", Feedback: "1e300"},
		{Timestamp: "t3", Feedback: "3"},
	}

	stats := Compute(records)

	if stats.FeedbackGiven != 3 {
		t.Errorf("Expected 3 feedback, got %d", stats.FeedbackGiven)
	}
	if stats.AverageRating == nil || *stats.AverageRating <= 3 {
		t.Errorf("Out-of-scale values must still count in the mean, got %v", stats.AverageRating)
	}
	if len(stats.Distribution) != 1 || stats.Distribution[3] != 1 {
		t.Errorf("Expected only rating 3 in distribution, got %v", stats.Distribution)
	}
}

func TestCompute_Empty(t *testing.T) {
	stats := Compute(nil)
	if stats.TotalInteractions != 0 || stats.FeedbackGiven != 0 || stats.AverageRating != nil {
		t.Errorf("Unexpected stats for empty log: %+v", stats)
	}
	if stats.FeedbackRate != 0 {
		t.Errorf("Expected zero rate, got %v", stats.FeedbackRate)
	}
	if !strings.Contains(stats.Summary(), "Average rating: N/A") {
		t.Errorf("Summary must show N/A average:\n%s", stats.Summary())
	}
}

func TestSummary(t *testing.T) {
	stats := Compute([]storage.Record{
		{Timestamp: "2024-01-15T10:00:00", User: "alice", Feedback: "3"},
		{Timestamp: "2024-01-15T10:00:01", User: "alice", Feedback: "5"},
	})
	summary := stats.Summary()

	for _, want := range []string{"Total interactions: 2", "Average rating: 4.00", "Feedback rate: 100.0%", "- 3: 1", "- 5: 1"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, summary)
		}
	}

	js, err := stats.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	if !strings.Contains(js, `"feedback_given": 2`) {
		t.Errorf("Unexpected JSON: %s", js)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, s := range []string{"2024-01-15T10:00:00.123456", "2024-01-15T10:00:00", "2024-01-15T10:00:00Z"} {
		if _, ok := ParseTimestamp(s); !ok {
			t.Errorf("Expected %q to parse", s)
		}
	}
	if _, ok := ParseTimestamp("yesterday"); ok {
		t.Errorf("Expected failure")
	}
}
