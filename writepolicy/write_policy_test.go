package writepolicy

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (s *recordingStore) Store(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.data == nil {
		s.data = make(map[string]string)
	}
	s.data[key] = value
	return nil
}

type recordingRecorder struct {
	mu    sync.Mutex
	stmts []string
	block chan struct{}
}

func (r *recordingRecorder) Record(_ context.Context, stmt string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stmts = append(r.stmts, stmt)
	return nil
}

func TestWriteThroughStoresPlaceholder(t *testing.T) {
	s := &recordingStore{}
	p := NewWriteThroughPolicy(s, zerolog.Nop())

	p.OnMutation(context.Background(), "INSERT INTO t VALUES (1);")
	p.Close()

	v, ok := s.data["INSERT INTO t VALUES (1);"]
	assert.True(t, ok)
	assert.Equal(t, Placeholder, v)
}

func TestWriteThroughSwallowsStoreError(t *testing.T) {
	s := &recordingStore{err: errors.New("released")}
	p := NewWriteThroughPolicy(s, zerolog.Nop())

	assert.NotPanics(t, func() {
		p.OnMutation(context.Background(), "DELETE FROM t WHERE 1;")
	})
}

func TestWriteBackFlushesOnClose(t *testing.T) {
	r := &recordingRecorder{}
	p := NewWriteBackPolicy(r, 16, zerolog.Nop())

	for _, s := range []string{"a", "b", "c"} {
		p.OnMutation(context.Background(), s)
	}
	p.Close()
	p.Close()

	assert.Equal(t, []string{"a", "b", "c"}, r.stmts)
	assert.Zero(t, p.Dropped())
}

func TestWriteBackDropsWhenFull(t *testing.T) {
	r := &recordingRecorder{block: make(chan struct{})}
	p := NewWriteBackPolicy(r, 1, zerolog.Nop())

	// The worker takes one record and blocks on it; one more fills the buffer.
	for i := 0; i < 10; i++ {
		p.OnMutation(context.Background(), "stmt")
	}
	close(r.block)
	p.Close()

	assert.Positive(t, p.Dropped())
	assert.Equal(t, int64(10), p.Dropped()+int64(len(r.stmts)))
}

func TestWriteBackSurvivesCanceledContext(t *testing.T) {
	r := &recordingRecorder{}
	p := NewWriteBackPolicy(r, 4, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	p.OnMutation(ctx, "stmt")
	cancel()
	p.Close()

	assert.Equal(t, []string{"stmt"}, r.stmts)
}

func TestNew(t *testing.T) {
	s := &recordingStore{}
	r := &recordingRecorder{}

	p, err := New(ModeCache, s, nil, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &WriteThroughPolicy{}, p)

	p, err = New(ModeJournal, s, r, 4, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &WriteBackPolicy{}, p)
	p.Close()

	_, err = New(ModeJournal, s, nil, 4, zerolog.Nop())
	assert.Error(t, err)

	p, err = New(ModeNone, s, nil, 0, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, Discard{}, p)

	_, err = New("async", s, r, 4, zerolog.Nop())
	assert.Error(t, err)
}

func TestWriteBackDropsAfterClose(t *testing.T) {
	r := &recordingRecorder{}
	p := NewWriteBackPolicy(r, 4, zerolog.Nop())
	p.Close()

	assert.NotPanics(t, func() {
		p.OnMutation(context.Background(), "late")
	})
	assert.Equal(t, int64(1), p.Dropped())
	assert.Empty(t, r.stmts)
}

func TestWriteBackCloseDuringMutations(t *testing.T) {
	r := &recordingRecorder{}
	p := NewWriteBackPolicy(r, 8, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p.OnMutation(context.Background(), "stmt")
			}
		}()
	}
	p.Close()
	wg.Wait()

	r.mu.Lock()
	recorded := int64(len(r.stmts))
	r.mu.Unlock()
	assert.Equal(t, int64(800), recorded+p.Dropped())
}
