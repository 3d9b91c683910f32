package mag

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildExpr(t *testing.T) {
	t.Run("forms integer and string queries", func(t *testing.T) {
		exprs, err := BuildExpr([]int64{1, 2}, "Id", ExprLimits{MaxLength: 1000})
		require.NoError(t, err)
		assert.Equal(t, []string{"expr=OR(Id=1,Id=2)"}, exprs)

		exprs, err = BuildExpr([]string{"cat", "dog"}, "Ti", ExprLimits{MaxLength: 1000})
		require.NoError(t, err)
		assert.Equal(t, []string{"expr=OR(Ti='cat',Ti='dog')"}, exprs)
	})

	t.Run("respects length limit and returns remainder", func(t *testing.T) {
		exprs, err := BuildExpr([]int64{1, 2, 3}, "Id", ExprLimits{MaxLength: 21})
		require.NoError(t, err)
		assert.Equal(t, []string{"expr=OR(Id=1,Id=2)", "expr=OR(Id=3)"}, exprs)
	})

	t.Run("respects term limit", func(t *testing.T) {
		exprs, err := BuildExpr([]int64{1, 2, 3, 4, 5}, "Id", ExprLimits{MaxTerms: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{"expr=OR(Id=1,Id=2)", "expr=OR(Id=3,Id=4)", "expr=OR(Id=5)"}, exprs)
	})

	t.Run("zero values give zero expressions", func(t *testing.T) {
		exprs, err := BuildExpr([]int64{}, "Id", ExprLimits{MaxLength: 100})
		require.NoError(t, err)
		assert.Empty(t, exprs)
	})

	t.Run("single value gives single term", func(t *testing.T) {
		exprs, err := BuildExpr([]string{"x"}, "Ti", ExprLimits{})
		require.NoError(t, err)
		assert.Equal(t, []string{"expr=OR(Ti='x')"}, exprs)
	})

	t.Run("term that never fits is an error", func(t *testing.T) {
		_, err := BuildExpr([]string{"a very long title"}, "Ti", ExprLimits{MaxLength: 15})
		assert.ErrorIs(t, err, ErrTermTooLong)
	})

	t.Run("covers every value exactly once within the limit", func(t *testing.T) {
		for _, limit := range []int{18, 20, 33, 64, 200} {
			values := make([]int64, 0, 97)
			for i := int64(0); i < 97; i++ {
				values = append(values, i*i*31)
			}
			exprs, err := BuildExpr(values, "Id", ExprLimits{MaxLength: limit})
			require.NoError(t, err, "limit %d", limit)

			var got []string
			for _, e := range exprs {
				assert.LessOrEqual(t, len(e), limit)
				require.True(t, strings.HasPrefix(e, "expr=OR(") && strings.HasSuffix(e, ")"))
				got = append(got, strings.Split(strings.TrimSuffix(strings.TrimPrefix(e, "expr=OR("), ")"), ",")...)
			}
			want := make([]string, 0, len(values))
			for _, v := range values {
				want = append(want, fmt.Sprintf("Id=%d", v))
			}
			assert.Equal(t, want, got, "limit %d", limit)
		}
	})
}

func TestBuildCompositeExpr(t *testing.T) {
	t.Run("wraps nested fields and date window", func(t *testing.T) {
		w := &DateWindow{
			Start: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2019, 2, 22, 0, 0, 0, 0, time.UTC),
		}
		expr, err := BuildCompositeExpr([]string{"bar", "foo"}, "F.FN", w)
		require.NoError(t, err)
		assert.Equal(t,
			"expr=OR(And(Composite(F.FN='bar'), D=['2019-01-01', '2019-02-22']), And(Composite(F.FN='foo'), D=['2019-01-01', '2019-02-22']))",
			expr)
	})

	t.Run("without window", func(t *testing.T) {
		expr, err := BuildCompositeExpr([]string{"bar"}, "F.FN", nil)
		require.NoError(t, err)
		assert.Equal(t, "expr=OR(Composite(F.FN='bar'))", expr)

		expr, err = BuildCompositeExpr([]string{"bar", "foo"}, "Ti", nil)
		require.NoError(t, err)
		assert.Equal(t, "expr=OR(Ti='bar', Ti='foo')", expr)
	})

	t.Run("rejects quotes", func(t *testing.T) {
		_, err := BuildCompositeExpr([]string{"dementia", "alzheimer's disease"}, "F.FN", nil)
		assert.ErrorIs(t, err, ErrInvalidValue)

		_, err = BuildExpr([]string{"alzheimer's disease"}, "F.FN", ExprLimits{})
		assert.ErrorIs(t, err, ErrInvalidValue)
	})
}

func TestDateWindows(t *testing.T) {
	start := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)

	t.Run("consecutive windows cover the range", func(t *testing.T) {
		windows := DateWindows(start, end, 4)
		require.Len(t, windows, 4)
		assert.Equal(t, start, windows[0].Start)
		assert.Equal(t, end, windows[3].End)
		for i := 1; i < len(windows); i++ {
			assert.Equal(t, windows[i-1].End, windows[i].Start)
		}
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Nil(t, DateWindows(start, end, 0))
		assert.Nil(t, DateWindows(end, start, 2))
	})

	t.Run("total intervals count started years", func(t *testing.T) {
		assert.Equal(t, 4, TotalIntervals(start, end, 2))
		assert.Equal(t, 1, TotalIntervals(start, start, 1))
	})
}
