package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) step(name string, deps ...string) Step {
	return Step{Name: name, DependsOn: deps, Run: func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		return nil
	}}
}

func (r *recorder) index(name string) int {
	for i, n := range r.order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestNewPipeline(t *testing.T) {
	log := zaptest.NewLogger(t)
	noop := func(context.Context) error { return nil }

	t.Run("builds waves", func(t *testing.T) {
		r := &recorder{}
		p, err := NewPipeline(log, nil,
			r.step("a"), r.step("b", "a"), r.step("c", "a"), r.step("d", "b", "c"))
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, p.Waves())
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		_, err := NewPipeline(log, nil, Step{Name: "a", Run: noop}, Step{Name: "a", Run: noop})
		assert.ErrorContains(t, err, "duplicate")
	})

	t.Run("rejects unknown dependency", func(t *testing.T) {
		_, err := NewPipeline(log, nil, Step{Name: "a", DependsOn: []string{"x"}, Run: noop})
		assert.ErrorContains(t, err, "unknown step")
	})

	t.Run("rejects cycles", func(t *testing.T) {
		_, err := NewPipeline(log, nil,
			Step{Name: "a", DependsOn: []string{"b"}, Run: noop},
			Step{Name: "b", DependsOn: []string{"a"}, Run: noop})
		assert.ErrorContains(t, err, "cycle")
	})
}

func TestPipeline_Run(t *testing.T) {
	log := zaptest.NewLogger(t)

	t.Run("respects dependencies", func(t *testing.T) {
		r := &recorder{}
		p, err := NewPipeline(log, NewMetrics(),
			r.step("start"), r.step("left", "start"), r.step("right", "start"), r.step("join", "left", "right"), r.step("end", "join"))
		require.NoError(t, err)
		require.NoError(t, p.Run(context.Background()))

		require.Len(t, r.order, 5)
		assert.Equal(t, "start", r.order[0])
		assert.Less(t, r.index("left"), r.index("join"))
		assert.Less(t, r.index("right"), r.index("join"))
		assert.Equal(t, "end", r.order[4])
	})

	t.Run("fan-out steps run concurrently", func(t *testing.T) {
		started := make(chan struct{})
		wait := func(ctx context.Context) error {
			select {
			case started <- struct{}{}:
			case <-started:
			case <-time.After(2 * time.Second):
				return errors.New("sibling never started")
			}
			return nil
		}
		p, err := NewPipeline(log, nil,
			Step{Name: "a", Run: wait},
			Step{Name: "b", Run: wait})
		require.NoError(t, err)
		assert.NoError(t, p.Run(context.Background()))
	})

	t.Run("first failure aborts with step name", func(t *testing.T) {
		r := &recorder{}
		boom := errors.New("boom")
		p, err := NewPipeline(log, nil,
			r.step("start"),
			Step{Name: "parse", DependsOn: []string{"start"}, Run: func(context.Context) error { return boom }},
			r.step("end", "parse"))
		require.NoError(t, err)

		err = p.Run(context.Background())
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "parse", stepErr.Step)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, []string{"start"}, r.order)
	})

	t.Run("only runs the selected steps", func(t *testing.T) {
		r := &recorder{}
		p, err := NewPipeline(log, nil, r.step("a"), r.step("b", "a"), r.step("c", "b"))
		require.NoError(t, err)

		require.NoError(t, p.Run(context.Background(), "c", "a"))
		assert.Equal(t, []string{"a", "c"}, r.order)

		assert.ErrorContains(t, p.Run(context.Background(), "x"), "unknown step")
	})

	t.Run("one run at a time", func(t *testing.T) {
		release := make(chan struct{})
		entered := make(chan struct{})
		var once sync.Once
		p, err := NewPipeline(log, nil, Step{Name: "slow", Run: func(context.Context) error {
			once.Do(func() { close(entered) })
			<-release
			return nil
		}})
		require.NoError(t, err)

		done := make(chan error)
		go func() { done <- p.Run(context.Background()) }()
		<-entered
		assert.ErrorIs(t, p.Run(context.Background()), ErrRunInProgress)
		close(release)
		require.NoError(t, <-done)
		assert.NoError(t, p.Run(context.Background()))
	})
	t.Run("async start reports a running pipeline", func(t *testing.T) {
		release := make(chan struct{})
		p, err := NewPipeline(log, nil, Step{Name: "slow", Run: func(context.Context) error {
			<-release
			return nil
		}})
		require.NoError(t, err)

		done, err := p.RunAsync(context.Background())
		require.NoError(t, err)
		_, err = p.RunAsync(context.Background())
		assert.ErrorIs(t, err, ErrRunInProgress)

		close(release)
		assert.NoError(t, <-done)

		_, err = p.RunAsync(context.Background(), "missing")
		assert.ErrorContains(t, err, "unknown step")
	})
}
