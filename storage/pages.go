package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ci-mapping/providers/mag"
)

// Mirror nimmt eine Kopie jeder geschriebenen Seite entgegen, z. B. S3Mirror.
type Mirror interface {
	Upload(ctx context.Context, key string, data []byte) error
}

// PageStore legt abgerufene Seiten als JSON-Dateien <prefix>_<n>.json ab.
// Dateien werden nie überschrieben; jede neue Seite bekommt den nächsten freien Index.
type PageStore struct {
	Dir    string
	Prefix string
	Mirror Mirror
	Logger *zap.Logger
}

// NewPageStore legt das Verzeichnis bei Bedarf an.
func NewPageStore(dir, prefix string, logger *zap.Logger) (*PageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}
	return &PageStore{Dir: dir, Prefix: prefix, Logger: logger}, nil
}

// Write speichert eine Seite und gibt den Dateinamen zurück.
func (s *PageStore) Write(ctx context.Context, entities []mag.Entity) (string, error) {
	if entities == nil {
		entities = []mag.Entity{}
	}
	data, err := json.Marshal(entities)
	if err != nil {
		return "", err
	}

	files, err := s.files()
	if err != nil {
		return "", err
	}
	next := 0
	if len(files) > 0 {
		next = files[len(files)-1].index + 1
	}

	for {
		name := fmt.Sprintf("%s_%d.json", s.Prefix, next)
		f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			next++
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		s.Logger.Debug("Seite gespeichert", zap.String("file", name), zap.Int("entities", len(entities)))

		if s.Mirror != nil {
			if err := s.Mirror.Upload(ctx, name, data); err != nil {
				return name, fmt.Errorf("mirror %s: %w", name, err)
			}
		}
		return name, nil
	}
}

// ReadAll liest alle gespeicherten Seiten in Index-Reihenfolge.
func (s *PageStore) ReadAll() ([]mag.Entity, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	var all []mag.Entity
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(s.Dir, f.name))
		if err != nil {
			return nil, err
		}
		var page []mag.Entity
		if err := json.Unmarshal(data, &page); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.name, err)
		}
		all = append(all, page...)
	}
	s.Logger.Info("Seiten gelesen", zap.Int("files", len(files)), zap.Int("entities", len(all)))
	return all, nil
}

// Files gibt die Dateinamen aller Seiten in Index-Reihenfolge zurück.
func (s *PageStore) Files() ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	return names, nil
}

type pageFile struct {
	name  string
	index int
}

func (s *PageStore) files() ([]pageFile, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var files []pageFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		rest, ok := strings.CutPrefix(e.Name(), s.Prefix+"_")
		if !ok {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimSuffix(rest, ".json"))
		if err != nil || !strings.HasSuffix(rest, ".json") {
			continue
		}
		files = append(files, pageFile{name: e.Name(), index: idx})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].index < files[j].index })
	return files, nil
}
