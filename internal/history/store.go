// Package history keeps the per-conversation reply log, compacting it into a
// summary plus a short recent tail once it grows past a threshold.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moments-agent/internal/domain"
)

const (
	// DefaultTTL is the expiry window applied on every durable write.
	DefaultTTL            = 7 * 24 * time.Hour
	defaultSummaryTimeout = 30 * time.Second
)

// ErrInvalidKey is returned when either half of a conversation key is blank.
var ErrInvalidKey = errors.New("history: owner id and post id are required")

var errCorruptLog = errors.New("history: stored log is corrupt")

// Summarizer condenses an ordered list of texts into one. It may be slow and
// it may fail.
type Summarizer interface {
	Summarize(ctx context.Context, texts []string) (string, error)
}

// SummarizerFunc adapts a plain function to Summarizer.
type SummarizerFunc func(ctx context.Context, texts []string) (string, error)

func (f SummarizerFunc) Summarize(ctx context.Context, texts []string) (string, error) {
	return f(ctx, texts)
}

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	TTL            time.Duration
	Threshold      int
	Keep           int
	SummaryTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// Store manages conversation logs on top of a Backend. Mutations of one key
// are serialized; different keys never wait on each other.
type Store struct {
	backend        Backend
	summarizer     Summarizer
	ttl            time.Duration
	threshold      int
	keep           int
	summaryTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
	locks          *keyedMutex
}

// NewStore creates a Store.
func NewStore(backend Backend, summarizer Summarizer, opts Options) (*Store, error) {
	if backend == nil {
		return nil, errors.New("history: backend must not be nil")
	}
	if summarizer == nil {
		return nil, errors.New("history: summarizer must not be nil")
	}
	s := &Store{
		backend:        backend,
		summarizer:     summarizer,
		ttl:            opts.TTL,
		threshold:      opts.Threshold,
		keep:           opts.Keep,
		summaryTimeout: opts.SummaryTimeout,
		logger:         opts.Logger,
		now:            opts.Now,
		locks:          newKeyedMutex(),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.threshold <= 0 {
		s.threshold = DefaultThreshold
	}
	if s.keep <= 0 {
		s.keep = DefaultKeep
	}
	if s.summaryTimeout <= 0 {
		s.summaryTimeout = defaultSummaryTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Append adds a reply to the conversation and compacts the log when it has
// grown past the threshold. Backend and summarizer failures are logged and
// absorbed; only an invalid key is reported.
func (s *Store) Append(ctx context.Context, key domain.ConversationKey, text string) error {
	if !key.Valid() {
		return ErrInvalidKey
	}
	k := key.String()
	unlock := s.locks.Lock(k)
	defer unlock()

	entries, err := s.load(ctx, k)
	switch {
	case errors.Is(err, errCorruptLog):
		s.logger.Warn("history: discarding unreadable log", "key", k, "err", err)
		entries = nil
	case err != nil:
		// Writing now would replace the stored log with a partial one.
		s.logger.Warn("history: append skipped, backend read failed", "key", k, "err", err)
		return nil
	}

	entries = append(entries, domain.NewReply(text, s.now()))
	if NeedsCompaction(entries, s.threshold) {
		entries = s.compact(ctx, k, entries)
	}
	s.save(ctx, k, entries)
	return nil
}

// Replies returns the rendered log in chronological order. A backend failure
// reads as an empty history.
func (s *Store) Replies(ctx context.Context, key domain.ConversationKey) []string {
	return Render(s.Entries(ctx, key))
}

// IsFirstReply reports whether no reply has been stored for the key yet. A
// summary on its own does not count.
func (s *Store) IsFirstReply(ctx context.Context, key domain.ConversationKey) bool {
	return CountReplies(s.Entries(ctx, key)) == 0
}

// Entries returns the raw log for the key.
func (s *Store) Entries(ctx context.Context, key domain.ConversationKey) []domain.Entry {
	if !key.Valid() {
		return nil
	}
	entries, err := s.load(ctx, key.String())
	if err != nil {
		s.logger.Warn("history: read failed, treating as empty", "key", key.String(), "err", err)
		return nil
	}
	return entries
}

// Delete removes the whole log for the key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key domain.ConversationKey) error {
	if !key.Valid() {
		return ErrInvalidKey
	}
	k := key.String()
	unlock := s.locks.Lock(k)
	defer unlock()

	if err := s.backend.Delete(ctx, k); err != nil {
		s.logger.Warn("history: delete failed", "key", k, "err", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context, k string) ([]domain.Entry, error) {
	raw, ok, err := s.backend.Get(ctx, k)
	if err != nil {
		return nil, fmt.Errorf("history: get %q: %w", k, err)
	}
	if !ok {
		return nil, nil
	}
	entries, err := Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptLog, err)
	}
	return entries, nil
}

func (s *Store) save(ctx context.Context, k string, entries []domain.Entry) {
	raw, err := Encode(entries)
	if err != nil {
		s.logger.Error("history: encode failed", "key", k, "err", err)
		return
	}
	if err := s.backend.SetWithExpiry(ctx, k, raw, s.ttl); err != nil {
		s.logger.Warn("history: write failed", "key", k, "entries", len(entries), "err", err)
	}
}

type summaryResult struct {
	text string
	err  error
}

// compact returns the compacted log, or entries unchanged when the summarizer
// fails or does not answer in time. The caller holds the key lock.
func (s *Store) compact(ctx context.Context, k string, entries []domain.Entry) []domain.Entry {
	sctx, cancel := context.WithTimeout(ctx, s.summaryTimeout)
	defer cancel()

	texts := Texts(entries)
	done := make(chan summaryResult, 1)
	go func() {
		text, err := s.summarizer.Summarize(sctx, texts)
		done <- summaryResult{text: text, err: err}
	}()

	var res summaryResult
	select {
	case res = <-done:
	case <-sctx.Done():
		res.err = sctx.Err()
	}
	if res.err != nil {
		s.logger.Warn("history: compaction deferred", "key", k, "entries", len(entries), "err", res.err)
		return entries
	}

	compacted := Compact(entries, res.text, s.keep, s.now())
	s.logger.Info("history: compacted", "key", k, "from", len(entries), "to", len(compacted))
	return compacted
}
