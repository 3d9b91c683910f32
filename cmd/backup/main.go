package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"

	"ci-mapping/config"
	"ci-mapping/storage"
)

type backupConfig struct {
	Prefix      string `envconfig:"BACKUP_PREFIX" default:"backups"`
	KeepBackups int    `envconfig:"KEEP_BACKUPS" default:"4"`
	SkipPages   bool   `envconfig:"BACKUP_SKIP_PAGES" default:"false"`
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("Starte Backup-Prozess...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}
	var bcfg backupConfig
	if err := envconfig.Process("", &bcfg); err != nil {
		logger.Fatal("Fehler beim Laden der Backup-Konfiguration", zap.Error(err))
	}
	if !cfg.S3Enabled() {
		logger.Fatal("S3_URL und S3_BUCKET müssen gesetzt sein")
	}

	client, err := storage.NewS3Client(cfg)
	if err != nil {
		logger.Fatal("Fehler beim Erstellen des S3-Clients", zap.Error(err))
	}
	mirror := &storage.S3Mirror{Client: client, Bucket: cfg.S3Bucket, Prefix: bcfg.Prefix, Logger: logger}

	ctx := context.Background()
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")

	// 1. Datenbank-Dump
	dump, err := createDump(cfg)
	if err != nil {
		logger.Fatal("Fehler beim Erstellen des DB-Dumps", zap.Error(err))
	}
	if err := upload(ctx, mirror, "db", fmt.Sprintf("backup-%s.sql.gz", stamp), dump, bcfg.KeepBackups); err != nil {
		logger.Fatal("Fehler beim Hochladen des DB-Dumps", zap.Error(err))
	}

	// 2. Rohdaten-Seiten
	if !bcfg.SkipPages {
		archive, err := archiveDir(cfg.StorePath)
		if err != nil {
			logger.Fatal("Fehler beim Archivieren der Rohdaten", zap.String("dir", cfg.StorePath), zap.Error(err))
		}
		if err := upload(ctx, mirror, "pages", fmt.Sprintf("pages-%s.tar.gz", stamp), archive, bcfg.KeepBackups); err != nil {
			logger.Fatal("Fehler beim Hochladen der Rohdaten", zap.Error(err))
		}
	}

	logger.Info("Backup-Prozess erfolgreich abgeschlossen.")
}

func upload(ctx context.Context, mirror *storage.S3Mirror, kind, name string, data []byte, keep int) error {
	key := kind + "/" + name
	if err := mirror.Upload(ctx, key, data); err != nil {
		return err
	}
	mirror.Logger.Info("Backup hochgeladen", zap.String("bucket", mirror.Bucket), zap.String("key", key), zap.Int("bytes", len(data)))
	prefix := kind + "/"
	if mirror.Prefix != "" {
		prefix = mirror.Prefix + "/" + prefix
	}
	return mirror.Rotate(ctx, prefix, keep)
}

func createDump(cfg *config.Config) ([]byte, error) {
	cmd := exec.Command("pg_dump",
		"-h", cfg.DBHost,
		"-p", fmt.Sprint(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-w", // Passwort wird über PGPASSWORD bereitgestellt
	)
	cmd.Env = append(os.Environ(), fmt.Sprintf("PGPASSWORD=%s", cfg.DBPassword))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	if _, err := io.Copy(gzipWriter, stdout); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// archiveDir packt alle regulären Dateien unterhalb von dir in ein tar.gz.
func archiveDir(dir string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
