package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ci-mapping/providers/mag"
)

// fakeSource liefert vorbereitete Seiten; Seite i gehört zu offset i*count.
type fakeSource struct {
	pages   [][]mag.Entity
	failAt  int
	err     error
	offsets []int
}

func (s *fakeSource) Evaluate(ctx context.Context, expr string, attributes []string, count, offset int) ([]mag.Entity, error) {
	s.offsets = append(s.offsets, offset)
	i := offset / count
	if s.err != nil && i == s.failAt {
		return nil, s.err
	}
	if i >= len(s.pages) {
		return nil, nil
	}
	return s.pages[i], nil
}

func page(t *testing.T, ids ...int64) []mag.Entity {
	out := make([]mag.Entity, 0, len(ids))
	for _, id := range ids {
		raw := fmt.Sprintf(`{"Id": %d}`, id)
		if id%2 == 0 {
			raw = fmt.Sprintf(`{"Id": %d, "DOI": "10.1/%d"}`, id, id)
		}
		out = append(out, decodeEntity(t, raw))
	}
	return out
}

func collectIDs(t *testing.T, f *PagedFetcher) ([]int64, error) {
	t.Helper()
	var ids []int64
	for e, err := range f.FetchAll(context.Background(), "expr=OR(Id=1)", []string{"Id"}) {
		if err != nil {
			return ids, err
		}
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func TestPagedFetcher(t *testing.T) {
	t.Run("stops on short page", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3, 4), page(t, 5)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4, 5}, ids)
		assert.Equal(t, []int{0, 2, 4}, src.offsets)
	})

	t.Run("exact multiple needs one empty page", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3, 4)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4}, ids)
		assert.Equal(t, []int{0, 2, 4}, src.offsets)
	})

	t.Run("empty-page policy continues past short pages", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3), page(t, 5, 6)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Policy: StopOnEmptyPage, Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 5, 6}, ids)
		assert.Equal(t, []int{0, 2, 4, 6}, src.offsets)
	})

	t.Run("required field filters after the stop decision", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 3), page(t, 4)}}
		f := &PagedFetcher{Source: src, PageSize: 2, RequireField: "DOI", Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, []int64{4}, ids)
		assert.Equal(t, []int{0, 2}, src.offsets)
	})

	t.Run("transport error propagates without retry", func(t *testing.T) {
		boom := fmt.Errorf("%w: connection reset", mag.ErrTransport)
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3, 4)}, failAt: 1, err: boom}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		assert.ErrorIs(t, err, mag.ErrTransport)
		assert.Equal(t, []int64{1, 2}, ids)
		assert.Equal(t, []int{0, 2}, src.offsets)
	})

	t.Run("max pages", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3, 4), page(t, 5, 6)}}
		f := &PagedFetcher{Source: src, PageSize: 2, MaxPages: 2, Logger: zaptest.NewLogger(t)}

		ids, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4}, ids)
	})

	t.Run("consumer can stop early", func(t *testing.T) {
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3, 4)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t)}

		for range f.FetchAll(context.Background(), "x", nil) {
			break
		}
		assert.Equal(t, []int{0}, src.offsets)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t)}

		var got error
		for _, err := range f.Pages(ctx, "x", nil) {
			got = err
		}
		assert.True(t, errors.Is(got, context.Canceled))
		assert.Empty(t, src.offsets)
	})

	t.Run("counts fetched pages", func(t *testing.T) {
		m := NewMetrics()
		src := &fakeSource{pages: [][]mag.Entity{page(t, 1, 2), page(t, 3)}}
		f := &PagedFetcher{Source: src, PageSize: 2, Logger: zaptest.NewLogger(t), Metrics: m}

		_, err := collectIDs(t, f)
		require.NoError(t, err)
		assert.Equal(t, 2.0, testutil.ToFloat64(m.PagesFetched))
	})
}
