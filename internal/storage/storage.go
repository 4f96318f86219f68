package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SuggestionDelimiter joins the suggestions of one record into a single table cell.
const SuggestionDelimiter = "|"

// UnknownUser stands in for a blank or missing user cell.
const UnknownUser = "Unknown"

// Columns is the header of the interaction table, in order.
var Columns = []string{"timestamp", "user", "challenge", "suggestions", "feedback"}

// Record is one logged challenge/suggestions/feedback exchange.
// Timestamp is the primary key; only Feedback changes after creation.
type Record struct {
	Timestamp   string   `json:"timestamp"`
	User        string   `json:"user"`
	Challenge   string   `json:"challenge"`
	Suggestions []string `json:"suggestions"`
	Feedback    Rating   `json:"feedback"`
}

// Store persists interaction records.
// Load returns records in append order and an empty slice when nothing was written yet.
// SetFeedback reports how many rows carried the given timestamp.
type Store interface {
	Load(ctx context.Context) ([]Record, error)
	Append(ctx context.Context, rec Record) error
	SetFeedback(ctx context.Context, timestamp string, feedback Rating) (int, error)
	Exists(ctx context.Context) (bool, error)
}

// Rating is the raw feedback cell. Rows written by older tools may hold
// integers, floats ("4.0") or junk; Value decides what counts as a rating.
type Rating string

var ErrInvalidRating = errors.New("rating must be an integer from 1 to 5")

// ParseRating validates user input.
func ParseRating(s string) (Rating, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 5 {
		return "", ErrInvalidRating
	}
	return Rating(strconv.Itoa(n)), nil
}

// IsSet reports whether any feedback text is present.
func (r Rating) IsSet() bool {
	return strings.TrimSpace(string(r)) != ""
}

// Value returns the numeric rating; unparsable or empty feedback counts as absent.
func (r Rating) Value() (float64, bool) {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NormalizeUser maps a blank user cell to UnknownUser.
func NormalizeUser(u string) string {
	if strings.TrimSpace(u) == "" {
		return UnknownUser
	}
	return u
}

func EncodeSuggestions(s []string) string {
	return strings.Join(s, SuggestionDelimiter)
}

// DecodeSuggestions splits a stored cell. An empty cell decodes to an empty slice.
func DecodeSuggestions(cell string) []string {
	if cell == "" {
		return []string{}
	}
	return strings.Split(cell, SuggestionDelimiter)
}

// PersistenceError wraps an I/O failure of a durable table.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
