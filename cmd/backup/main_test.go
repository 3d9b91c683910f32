package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mag_papers_0.json"), []byte(`[{"Id":1}]`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "mag_papers_1.json"), []byte(`[]`), 0o644))

	data, err := archiveDir(dir)
	require.NoError(t, err)

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gz)
	files := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[hdr.Name] = string(body)
	}
	assert.Equal(t, map[string]string{
		"mag_papers_0.json":     `[{"Id":1}]`,
		"sub/mag_papers_1.json": `[]`,
	}, files)
}

func TestArchiveDirMissing(t *testing.T) {
	_, err := archiveDir(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
