package services

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"ci-mapping/storage"
)

// insertNew liest die vorhandenen Schlüssel, filtert rows dagegen und schreibt den Rest, alles in tx.
func insertNew[T any, K comparable](tx *gorm.DB, log *zap.Logger, m *Metrics, table string, rows []T, column string, key func(T) K) (int, error) {
	var model T
	existing, err := storage.ExistingKeys[K](tx, &model, column)
	if err != nil {
		return 0, fmt.Errorf("read keys of %s: %w", table, err)
	}
	fresh := ExcludeExisting(rows, key, existing)
	if err := storage.Insert(tx, fresh); err != nil {
		if errors.Is(err, storage.ErrDuplicatePrimaryKey) {
			log.DPanic("Doppelter Primärschlüssel trotz Abgleich", zap.String("table", table), zap.Error(err))
		}
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	skipped := len(rows) - len(fresh)
	m.records(table, len(fresh), skipped)
	log.Info("Datensätze geschrieben", zap.String("table", table), zap.Int("inserted", len(fresh)), zap.Int("skipped", skipped))
	return len(fresh), nil
}

// insertLinks schreibt Verknüpfungszeilen und ignoriert bereits vorhandene.
func insertLinks[T any](tx *gorm.DB, log *zap.Logger, m *Metrics, table string, rows []T) (int, error) {
	n, err := storage.InsertIgnore(tx, rows)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	skipped := len(rows) - int(n)
	m.records(table, int(n), skipped)
	log.Info("Datensätze geschrieben", zap.String("table", table), zap.Int64("inserted", n), zap.Int("skipped", skipped))
	return int(n), nil
}
