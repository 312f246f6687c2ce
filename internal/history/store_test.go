package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"moments-agent/internal/domain"
)

var testKey = domain.ConversationKey{OwnerID: "user-1", PostID: "post-1"}

// countingSummarizer records every call and answers with a fixed text.
type countingSummarizer struct {
	mu     sync.Mutex
	calls  int
	inputs [][]string
	err    error
}

func (c *countingSummarizer) Summarize(_ context.Context, texts []string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.inputs = append(c.inputs, append([]string(nil), texts...))
	if c.err != nil {
		return "", c.err
	}
	return fmt.Sprintf("summary of %d", len(texts)), nil
}

func (c *countingSummarizer) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// flakyBackend wraps a MemoryBackend with switchable failures.
type flakyBackend struct {
	*MemoryBackend
	getErr   error
	setErr   error
	delErr   error
	setCalls atomic.Int32
	lastTTL  atomic.Int64
}

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend()}
}

func (f *flakyBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.setCalls.Add(1)
	f.lastTTL.Store(int64(ttl))
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryBackend.SetWithExpiry(ctx, key, value, ttl)
}

func (f *flakyBackend) Delete(ctx context.Context, key string) error {
	if f.delErr != nil {
		return f.delErr
	}
	return f.MemoryBackend.Delete(ctx, key)
}

func mustNewStore(t *testing.T, b Backend, s Summarizer, opts Options) *Store {
	t.Helper()
	st, err := NewStore(b, s, opts)
	require.NoError(t, err)
	return st
}

func appendN(t *testing.T, st *Store, key domain.ConversationKey, from, to int) {
	t.Helper()
	for i := from; i <= to; i++ {
		require.NoError(t, st.Append(context.Background(), key, fmt.Sprintf("reply %d", i)))
	}
}

func TestNewStore_ValidatesDependencies(t *testing.T) {
	_, err := NewStore(nil, &countingSummarizer{}, Options{})
	require.Error(t, err)
	_, err = NewStore(NewMemoryBackend(), nil, Options{})
	require.Error(t, err)
}

func TestIsFirstReply_Lifecycle(t *testing.T) {
	ctx := context.Background()
	st := mustNewStore(t, NewMemoryBackend(), &countingSummarizer{}, Options{})

	require.True(t, st.IsFirstReply(ctx, testKey))
	require.NoError(t, st.Append(ctx, testKey, "hello"))
	require.False(t, st.IsFirstReply(ctx, testKey))
	require.NoError(t, st.Delete(ctx, testKey))
	require.True(t, st.IsFirstReply(ctx, testKey))
}

func TestIsFirstReply_SummaryAloneDoesNotCount(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	raw, err := Encode([]domain.Entry{domain.NewSummary("earlier talk", time.Now())})
	require.NoError(t, err)
	require.NoError(t, b.SetWithExpiry(ctx, testKey.String(), raw, DefaultTTL))

	st := mustNewStore(t, b, &countingSummarizer{}, Options{})
	require.True(t, st.IsFirstReply(ctx, testKey))
	require.Equal(t, []string{SummaryMarker + "earlier talk"}, st.Replies(ctx, testKey))
}

func TestReplies_RoundTripBelowThreshold(t *testing.T) {
	for _, n := range []int{1, 7, 20} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			sum := &countingSummarizer{}
			st := mustNewStore(t, NewMemoryBackend(), sum, Options{})
			appendN(t, st, testKey, 1, n)

			got := st.Replies(context.Background(), testKey)
			require.Len(t, got, n)
			for i, text := range got {
				require.Equal(t, fmt.Sprintf("reply %d", i+1), text)
			}
			require.Zero(t, sum.callCount())
		})
	}
}

func TestAppend_CompactsOnTwentyFirstReply(t *testing.T) {
	ctx := context.Background()
	sum := &countingSummarizer{}
	st := mustNewStore(t, NewMemoryBackend(), sum, Options{})

	appendN(t, st, testKey, 1, 21)

	require.Equal(t, 1, sum.callCount())
	require.Len(t, sum.inputs[0], 21)
	require.Equal(t, "reply 1", sum.inputs[0][0])
	require.Equal(t, "reply 21", sum.inputs[0][20])

	entries := st.Entries(ctx, testKey)
	require.Len(t, entries, 6)
	require.True(t, entries[0].IsSummary())
	require.Equal(t, "summary of 21", entries[0].Text)
	for i, e := range entries[1:] {
		require.False(t, e.IsSummary())
		require.Equal(t, fmt.Sprintf("reply %d", 17+i), e.Text)
	}

	replies := st.Replies(ctx, testKey)
	require.Equal(t, SummaryMarker+"summary of 21", replies[0])
	require.Equal(t, "reply 21", replies[5])
	require.False(t, st.IsFirstReply(ctx, testKey))
}

func TestAppend_RecompactionFoldsPreviousSummary(t *testing.T) {
	ctx := context.Background()
	sum := &countingSummarizer{}
	st := mustNewStore(t, NewMemoryBackend(), sum, Options{})

	appendN(t, st, testKey, 1, 21)
	// 6 entries now; 15 more reach 21 again.
	appendN(t, st, testKey, 22, 36)

	require.Equal(t, 2, sum.callCount())
	require.Equal(t, "summary of 21", sum.inputs[1][0])

	entries := st.Entries(ctx, testKey)
	require.Len(t, entries, 6)
	summaries := 0
	for _, e := range entries {
		if e.IsSummary() {
			summaries++
		}
	}
	require.Equal(t, 1, summaries)
	require.True(t, entries[0].IsSummary())
	require.Equal(t, "reply 36", entries[5].Text)
}

func TestAppend_SummarizerFailureDefersCompaction(t *testing.T) {
	ctx := context.Background()
	sum := &countingSummarizer{err: errors.New("model offline")}
	st := mustNewStore(t, NewMemoryBackend(), sum, Options{})

	appendN(t, st, testKey, 1, 21)
	require.Equal(t, 1, sum.callCount())
	require.Len(t, st.Entries(ctx, testKey), 21)

	// Recovered summarizer: the next append retries.
	sum.mu.Lock()
	sum.err = nil
	sum.mu.Unlock()
	appendN(t, st, testKey, 22, 22)

	entries := st.Entries(ctx, testKey)
	require.Len(t, entries, 6)
	require.Equal(t, "summary of 22", entries[0].Text)
	require.Equal(t, "reply 18", entries[1].Text)
	require.Equal(t, "reply 22", entries[5].Text)
}

func TestAppend_SummarizerTimeoutLeavesLogUncompacted(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	defer close(release)
	slow := SummarizerFunc(func(context.Context, []string) (string, error) {
		<-release
		return "too late", nil
	})
	st := mustNewStore(t, NewMemoryBackend(), slow, Options{SummaryTimeout: 20 * time.Millisecond})

	appendN(t, st, testKey, 1, 21)

	entries := st.Entries(ctx, testKey)
	require.Len(t, entries, 21)
	require.Equal(t, "reply 21", entries[20].Text)
}

func TestAppend_RefreshesTTLOnEveryWrite(t *testing.T) {
	b := newFlakyBackend()
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})

	appendN(t, st, testKey, 1, 3)
	require.EqualValues(t, 3, b.setCalls.Load())
	require.Equal(t, int64(DefaultTTL), b.lastTTL.Load())
}

func TestAppend_ReadFailureSkipsWrite(t *testing.T) {
	b := newFlakyBackend()
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})
	appendN(t, st, testKey, 1, 2)

	b.getErr = errors.New("connection refused")
	require.NoError(t, st.Append(context.Background(), testKey, "lost"))
	require.EqualValues(t, 2, b.setCalls.Load())

	b.getErr = nil
	require.Equal(t, []string{"reply 1", "reply 2"}, st.Replies(context.Background(), testKey))
}

func TestAppend_WriteFailureIsAbsorbed(t *testing.T) {
	b := newFlakyBackend()
	b.setErr = errors.New("throttled")
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})

	require.NoError(t, st.Append(context.Background(), testKey, "hello"))
	require.True(t, st.IsFirstReply(context.Background(), testKey))
}

func TestAppend_CorruptLogIsReplaced(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	require.NoError(t, b.SetWithExpiry(ctx, testKey.String(), []byte("{not json"), DefaultTTL))
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})

	require.Empty(t, st.Replies(ctx, testKey))
	require.NoError(t, st.Append(ctx, testKey, "fresh"))
	require.Equal(t, []string{"fresh"}, st.Replies(ctx, testKey))
}

func TestReplies_ReadFailureReadsAsEmpty(t *testing.T) {
	b := newFlakyBackend()
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})
	appendN(t, st, testKey, 1, 1)

	b.getErr = errors.New("timeout")
	require.Empty(t, st.Replies(context.Background(), testKey))
	require.True(t, st.IsFirstReply(context.Background(), testKey))
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := mustNewStore(t, NewMemoryBackend(), &countingSummarizer{}, Options{})

	require.NoError(t, st.Delete(ctx, testKey))
	require.NoError(t, st.Delete(ctx, testKey))

	appendN(t, st, testKey, 1, 2)
	require.NoError(t, st.Delete(ctx, testKey))
	require.NoError(t, st.Delete(ctx, testKey))
	require.Empty(t, st.Replies(ctx, testKey))
}

func TestDelete_BackendFailureIsAbsorbed(t *testing.T) {
	b := newFlakyBackend()
	b.delErr = errors.New("unreachable")
	st := mustNewStore(t, b, &countingSummarizer{}, Options{})
	require.NoError(t, st.Delete(context.Background(), testKey))
}

func TestInvalidKey(t *testing.T) {
	ctx := context.Background()
	st := mustNewStore(t, NewMemoryBackend(), &countingSummarizer{}, Options{})
	bad := domain.ConversationKey{OwnerID: "user-1", PostID: " "}

	require.ErrorIs(t, st.Append(ctx, bad, "x"), ErrInvalidKey)
	require.ErrorIs(t, st.Delete(ctx, bad), ErrInvalidKey)
	require.Empty(t, st.Replies(ctx, bad))
	require.True(t, st.IsFirstReply(ctx, bad))
}

func TestAppend_ConcurrentSameKey(t *testing.T) {
	cases := []struct {
		appends     int
		compactions int
		finalLen    int
	}{
		{appends: 21, compactions: 1, finalLen: 6},
		{appends: 50, compactions: 2, finalLen: 20},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.appends), func(t *testing.T) {
			ctx := context.Background()
			sum := &countingSummarizer{}
			st := mustNewStore(t, NewMemoryBackend(), sum, Options{})

			var wg sync.WaitGroup
			for i := 0; i < tc.appends; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_ = st.Append(ctx, testKey, fmt.Sprintf("reply %d", i))
				}(i)
			}
			wg.Wait()

			require.Equal(t, tc.compactions, sum.callCount())
			for _, in := range sum.inputs {
				require.Len(t, in, 21)
			}
			entries := st.Entries(ctx, testKey)
			require.Len(t, entries, tc.finalLen)
			require.True(t, entries[0].IsSummary())
			require.Zero(t, st.locks.size())
		})
	}
}

func TestAppend_UnrelatedKeysDoNotContend(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	blocking := SummarizerFunc(func(context.Context, []string) (string, error) {
		once.Do(func() { close(entered) })
		<-release
		return "done", nil
	})
	st := mustNewStore(t, NewMemoryBackend(), blocking, Options{SummaryTimeout: 5 * time.Second})

	appendN(t, st, testKey, 1, 20)
	go func() { _ = st.Append(ctx, testKey, "reply 21") }()
	<-entered

	other := domain.ConversationKey{OwnerID: "user-2", PostID: "post-9"}
	done := make(chan struct{})
	go func() {
		_ = st.Append(ctx, other, "independent")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("append on an unrelated key waited on a compaction")
	}
	close(release)
	require.Equal(t, []string{"independent"}, st.Replies(ctx, other))
}
