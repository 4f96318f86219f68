package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"counselor-assistant/internal/storage"
)

// Stats содержит агрегированную статистику отзывов
type Stats struct {
	TotalInteractions int         `json:"total_interactions"`
	FeedbackGiven     int         `json:"feedback_given"`
	AverageRating     *float64    `json:"average_rating"`
	FeedbackRate      float64     `json:"feedback_rate"`
	UniqueUsers       int         `json:"unique_users"`
	Distribution      map[int]int `json:"distribution"`
	Series            []Point     `json:"series"`
}

// Point - одна оценка во временном ряду
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Rating    float64   `json:"rating"`
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp разбирает ключ записи в локальном времени
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Compute считает статистику по всем записям.
// Отзыв, который не парсится как число, не учитывается ни в количестве, ни в среднем.
func Compute(records []storage.Record) Stats {
	stats := Stats{
		TotalInteractions: len(records),
		Distribution:      make(map[int]int),
		Series:            []Point{},
	}

	users := make(map[string]struct{})
	var sum float64
	for _, rec := range records {
		users[storage.NormalizeUser(rec.User)] = struct{}{}

		v, ok := rec.Feedback.Value()
		if !ok {
			continue
		}
		stats.FeedbackGiven++
		sum += v
		// вне шкалы 1..5 значение учитывается в среднем, но не в гистограмме
		if v >= 1 && v <= 5 {
			stats.Distribution[int(math.Round(v))]++
		}
		if ts, ok := ParseTimestamp(rec.Timestamp); ok {
			stats.Series = append(stats.Series, Point{Timestamp: ts, Rating: v})
		}
	}

	stats.UniqueUsers = len(users)
	if stats.FeedbackGiven > 0 {
		avg := sum / float64(stats.FeedbackGiven)
		stats.AverageRating = &avg
	}
	if stats.TotalInteractions > 0 {
		stats.FeedbackRate = float64(stats.FeedbackGiven) / float64(stats.TotalInteractions) * 100
	}
	return stats
}

// Summary создает текстовый отчет для бота, CLI и MCP
func (s Stats) Summary() string {
	var b strings.Builder
	b.WriteString("Feedback statistics\n\n")
	fmt.Fprintf(&b, "- Total interactions: %d\n", s.TotalInteractions)
	fmt.Fprintf(&b, "- Feedback given: %d\n", s.FeedbackGiven)
	if s.AverageRating != nil {
		fmt.Fprintf(&b, "- Average rating: %.2f\n", *s.AverageRating)
	} else {
		b.WriteString("- Average rating: N/A\n")
	}
	fmt.Fprintf(&b, "- Feedback rate: %.1f%%\n", s.FeedbackRate)
	fmt.Fprintf(&b, "- Counselors: %d\n", s.UniqueUsers)

	if len(s.Distribution) > 0 {
		keys := make([]int, 0, len(s.Distribution))
		for k := range s.Distribution {
			keys = append(keys, k)
		}
		sort.Ints(keys)
		b.WriteString("\nRating distribution:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %d: %d\n", k, s.Distribution[k])
		}
	}
	return b.String()
}

// ToJSON сериализует статистику в JSON для детального анализа
func (s Stats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
