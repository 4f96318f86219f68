package history

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"counselor-assistant/internal/analytics"
	"counselor-assistant/internal/logger"
	"counselor-assistant/internal/storage"
)

// TimestampLayout is the record key format: local time with microseconds.
const TimestampLayout = "2006-01-02T15:04:05.000000"

const UnknownUser = storage.UnknownUser

var ErrRecordNotFound = errors.New("no interaction with this timestamp")

// Log is the interaction log shared by every session of the process.
type Log struct {
	store storage.Store
	now   func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewLog(store storage.Store) *Log {
	return &Log{store: store, now: time.Now}
}

// WithClock replaces the wall clock, for tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// nextTimestamp never returns the same instant twice within a process.
func (l *Log) nextTimestamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.now().Truncate(time.Microsecond)
	if !t.After(l.last) {
		t = l.last.Add(time.Microsecond)
	}
	l.last = t
	return t
}

// Append records a new unrated interaction. The key is bumped past any
// timestamp already present in the table, including rows from other processes.
func (l *Log) Append(ctx context.Context, challenge string, suggestions []string, user string) (storage.Record, error) {
	existing, err := l.store.Load(ctx)
	if err != nil {
		return storage.Record{}, err
	}
	taken := make(map[string]struct{}, len(existing))
	for _, r := range existing {
		taken[r.Timestamp] = struct{}{}
	}

	ts := l.nextTimestamp()
	key := ts.Format(TimestampLayout)
	for {
		if _, ok := taken[key]; !ok {
			break
		}
		ts = ts.Add(time.Microsecond)
		key = ts.Format(TimestampLayout)
	}
	l.mu.Lock()
	if ts.After(l.last) {
		l.last = ts
	}
	l.mu.Unlock()

	rec := storage.Record{
		Timestamp:   key,
		User:        storage.NormalizeUser(user),
		Challenge:   challenge,
		Suggestions: append([]string{}, suggestions...),
	}
	if err := l.store.Append(ctx, rec); err != nil {
		return storage.Record{}, err
	}
	logger.Log.Infow("interaction logged", "user", rec.User, "timestamp", rec.Timestamp, "suggestions", len(rec.Suggestions))
	return rec, nil
}

// ListForUser returns the user's records in file order. Read failures are
// logged and reported as an empty history.
func (l *Log) ListForUser(ctx context.Context, user string) []storage.Record {
	user = storage.NormalizeUser(user)
	records, err := l.store.Load(ctx)
	if err != nil {
		logger.Log.Errorw("failed to load interaction history", "user", user, "error", err)
		return []storage.Record{}
	}
	out := []storage.Record{}
	for _, r := range records {
		r.User = storage.NormalizeUser(r.User)
		if r.User == user {
			out = append(out, r)
		}
	}
	return out
}

// AttachFeedback overwrites the feedback of the record keyed by timestamp.
func (l *Log) AttachFeedback(ctx context.Context, timestamp string, feedback storage.Rating) error {
	n, err := l.store.SetFeedback(ctx, timestamp, feedback)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	logger.Log.Infow("feedback attached", "timestamp", timestamp, "feedback", string(feedback))
	return nil
}

func (l *Log) ComputeStats(ctx context.Context) (analytics.Stats, error) {
	exists, err := l.store.Exists(ctx)
	if err != nil {
		return analytics.Stats{}, err
	}
	if !exists {
		return analytics.Compute(nil), nil
	}
	records, err := l.store.Load(ctx)
	if err != nil {
		return analytics.Stats{}, err
	}
	return analytics.Compute(records), nil
}

// RecentRated returns up to n rated records across all users, newest first.
func (l *Log) RecentRated(ctx context.Context, n int) []storage.Record {
	records, err := l.store.Load(ctx)
	if err != nil {
		logger.Log.Errorw("failed to load rated interactions", "error", err)
		return []storage.Record{}
	}
	rated := []storage.Record{}
	for _, r := range records {
		if r.Feedback.IsSet() {
			rated = append(rated, r)
		}
	}
	sort.SliceStable(rated, func(i, j int) bool {
		return strings.Compare(rated[i].Timestamp, rated[j].Timestamp) > 0
	})
	if n >= 0 && len(rated) > n {
		rated = rated[:n]
	}
	return rated
}

// Owns reports whether timestamp names one of user's records.
func (l *Log) Owns(ctx context.Context, user, timestamp string) bool {
	for _, r := range l.ListForUser(ctx, user) {
		if r.Timestamp == timestamp {
			return true
		}
	}
	return false
}

// Users lists distinct users in first-seen order.
func (l *Log) Users(ctx context.Context) []string {
	records, err := l.store.Load(ctx)
	if err != nil {
		logger.Log.Errorw("failed to load users", "error", err)
		return []string{}
	}
	seen := map[string]struct{}{}
	out := []string{}
	for _, r := range records {
		u := storage.NormalizeUser(r.User)
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
