package storage

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ci-mapping/config"
	"ci-mapping/models"
)

// ErrDuplicatePrimaryKey bedeutet, dass ein Schlüssel trotz vorheriger Prüfung schon existierte.
var ErrDuplicatePrimaryKey = errors.New("duplicate primary key")

const insertBatchSize = 500

// Store hält die Datenbankverbindung der Pipeline.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// Open öffnet eine Verbindung über den angegebenen Dialekt.
func Open(dialector gorm.Dialector, log *zap.Logger) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	return &Store{DB: db, Logger: log}, nil
}

// OpenPostgres verbindet sich mit der konfigurierten PostgreSQL-Datenbank.
func OpenPostgres(cfg *config.Config, log *zap.Logger) (*Store, error) {
	s, err := Open(postgres.Open(cfg.DSN()), log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	log.Info("Successfully connected to database.", zap.String("db", cfg.DBName))
	return s, nil
}

// Close schließt die zugrunde liegende Verbindung.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate legt alle Tabellen an, falls sie fehlen.
func (s *Store) Migrate() error {
	s.Logger.Info("Running database auto-migration...")
	return s.DB.AutoMigrate(models.All()...)
}

// ExistingKeys liest alle Werte der Schlüsselspalte einer Tabelle.
func ExistingKeys[K comparable](tx *gorm.DB, model any, column string) (map[K]struct{}, error) {
	var keys []K
	if err := tx.Model(model).Pluck(column, &keys).Error; err != nil {
		return nil, err
	}
	set := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

// Insert schreibt rows in Batches. Ein Schlüsselkonflikt wird zu ErrDuplicatePrimaryKey.
func Insert[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	err := tx.CreateInBatches(rows, insertBatchSize).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicatePrimaryKey, err)
	}
	return err
}

// InsertIgnore schreibt rows und überspringt Zeilen, deren Schlüssel schon existiert.
// Zurückgegeben wird die Anzahl tatsächlich eingefügter Zeilen.
func InsertIgnore[T any](tx *gorm.DB, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(rows, insertBatchSize)
	return res.RowsAffected, res.Error
}

// DeleteAll leert eine Tabelle.
func DeleteAll(tx *gorm.DB, model any) (int64, error) {
	res := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model)
	return res.RowsAffected, res.Error
}
