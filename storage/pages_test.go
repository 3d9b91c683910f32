package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"ci-mapping/providers/mag"
)

type memMirror struct {
	keys []string
	err  error
}

func (m *memMirror) Upload(ctx context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	return nil
}

func entities(t *testing.T, raws ...string) []mag.Entity {
	t.Helper()
	out := make([]mag.Entity, 0, len(raws))
	for _, r := range raws {
		var e mag.Entity
		require.NoError(t, json.Unmarshal([]byte(r), &e))
		out = append(out, e)
	}
	return out
}

func TestPageStore(t *testing.T) {
	ctx := context.Background()

	t.Run("writes numbered files and reads them in order", func(t *testing.T) {
		s, err := NewPageStore(filepath.Join(t.TempDir(), "raw"), "mag_papers", zaptest.NewLogger(t))
		require.NoError(t, err)

		for i := 0; i < 11; i++ {
			_, err := s.Write(ctx, entities(t, fmt.Sprintf(`{"Id": %d}`, i%10)))
			require.NoError(t, err)
		}
		files, err := s.Files()
		require.NoError(t, err)
		require.Len(t, files, 11)
		assert.Equal(t, "mag_papers_0.json", files[0])
		assert.Equal(t, "mag_papers_10.json", files[10])

		all, err := s.ReadAll()
		require.NoError(t, err)
		require.Len(t, all, 11)
		assert.Equal(t, int64(0), all[0].ID)
		assert.Equal(t, int64(0), all[10].ID)
		assert.Equal(t, int64(9), all[9].ID)
	})

	t.Run("never overwrites existing files", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "mag_papers_0.json"), []byte(`[{"Id": 42}]`), 0o644))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other_0.json"), []byte(`garbage`), 0o644))

		s, err := NewPageStore(dir, "mag_papers", zaptest.NewLogger(t))
		require.NoError(t, err)
		name, err := s.Write(ctx, entities(t, `{"Id": 1}`))
		require.NoError(t, err)
		assert.Equal(t, "mag_papers_1.json", name)

		all, err := s.ReadAll()
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, int64(42), all[0].ID)
	})

	t.Run("keeps unknown keys of the raw payload", func(t *testing.T) {
		s, err := NewPageStore(t.TempDir(), "p", zaptest.NewLogger(t))
		require.NoError(t, err)
		_, err = s.Write(ctx, entities(t, `{"Id": 1, "DOI": "10.1/x", "extra": true}`))
		require.NoError(t, err)

		all, err := s.ReadAll()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.True(t, all[0].Has("DOI"))
		assert.True(t, all[0].Has("extra"))
	})

	t.Run("mirrors pages", func(t *testing.T) {
		m := &memMirror{}
		s, err := NewPageStore(t.TempDir(), "p", zaptest.NewLogger(t))
		require.NoError(t, err)
		s.Mirror = m

		_, err = s.Write(ctx, entities(t, `{"Id": 1}`))
		require.NoError(t, err)
		assert.Equal(t, []string{"p_0.json"}, m.keys)

		m.err = errors.New("s3 down")
		_, err = s.Write(ctx, nil)
		assert.ErrorContains(t, err, "s3 down")
	})
}
