// Package backup snapshots the SQLite database, encrypts it and keeps it
// in S3-compatible object storage.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jmoiron/sqlx"

	"github.com/dukerupert/prepper/internal/model"
	"github.com/dukerupert/prepper/internal/store"
)

var (
	ErrNotConfigured = errors.New("backup not configured: S3 bucket or credentials missing")
	ErrNoPassphrase  = errors.New("backup passphrase is required")
	ErrNotFound      = errors.New("backup not found")
)

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

func (c S3Config) complete() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// Config holds backup manager configuration.
type Config struct {
	S3     S3Config
	Prefix string
}

// Manager runs operator-triggered backups. Every run is recorded in the
// backups table.
type Manager struct {
	cfg     Config
	db      *sqlx.DB
	records *store.BackupStore
	client  s3Client
	logger  *slog.Logger
	now     func() time.Time
}

func NewManager(cfg Config, db *sqlx.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:     cfg,
		db:      db,
		records: store.NewBackupStore(db),
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	if cfg.S3.complete() {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether object storage is configured.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

func (m *Manager) key(filename string) string {
	if m.cfg.Prefix == "" {
		return filename
	}
	return m.cfg.Prefix + "/" + filename
}

// Run snapshots the live database with VACUUM INTO, seals the snapshot
// with passphrase and uploads it.
func (m *Manager) Run(ctx context.Context, passphrase string) (*model.Backup, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}

	started := m.now()
	filename := fmt.Sprintf("backup-%s.db.enc", started.Format("2006-01-02T150405Z"))
	record, err := m.records.Create(ctx, filename, m.key(filename), started)
	if err != nil {
		return nil, fmt.Errorf("create backup record: %w", err)
	}

	size, err := m.upload(ctx, record, passphrase)
	if err != nil {
		if uerr := m.records.UpdateStatus(ctx, record.ID, model.BackupStatusFailed, err.Error()); uerr != nil {
			m.logger.Error("record backup failure", "backup_id", record.ID, "error", uerr)
		}
		m.logger.Error("backup failed", "backup_id", record.ID, "error", err)
		return nil, err
	}

	if err := m.records.MarkCompleted(ctx, record.ID, size, m.now()); err != nil {
		return nil, err
	}
	m.logger.Info("backup completed", "backup_id", record.ID, "key", record.S3Key, "size_bytes", size)
	return m.records.GetByID(ctx, record.ID)
}

func (m *Manager) upload(ctx context.Context, record *model.Backup, passphrase string) (int64, error) {
	if err := m.records.UpdateStatus(ctx, record.ID, model.BackupStatusUploading, ""); err != nil {
		return 0, err
	}

	dir, err := os.MkdirTemp("", "prepper-backup-*")
	if err != nil {
		return 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, snapshot); err != nil {
		return 0, fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return 0, fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return 0, fmt.Errorf("encrypt: %w", err)
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(record.S3Key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload to s3: %w", err)
	}
	return int64(len(sealed)), nil
}

// List returns the most recent backup records, newest first.
func (m *Manager) List(ctx context.Context, limit int) ([]model.Backup, error) {
	if limit <= 0 {
		limit = 50
	}
	return m.records.List(ctx, limit)
}

// Restore downloads backup id, decrypts it, checks its integrity and
// writes it to dstPath. The server must not be running against dstPath.
func (m *Manager) Restore(ctx context.Context, id int64, passphrase, dstPath string) error {
	if m.client == nil {
		return ErrNotConfigured
	}
	record, err := m.records.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if record == nil || record.Status != model.BackupStatusCompleted {
		return ErrNotFound
	}

	result, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Key:    aws.String(record.S3Key),
	})
	if err != nil {
		return fmt.Errorf("download from s3: %w", err)
	}
	sealed, err := io.ReadAll(result.Body)
	result.Body.Close()
	if err != nil {
		return fmt.Errorf("read download: %w", err)
	}

	plaintext, err := Open(sealed, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp := dstPath + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored db: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dstPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dstPath + "-wal")
	os.Remove(dstPath + "-shm")

	m.logger.Info("backup restored", "backup_id", id, "path", dstPath)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var integrity string
	if err := db.GetContext(ctx, &integrity, "PRAGMA integrity_check"); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if integrity != "ok" {
		return fmt.Errorf("integrity check failed: %s", integrity)
	}
	return nil
}

// Cleanup deletes backups older than retentionDays and their objects. It
// returns how many records were removed. Object deletion failures are
// logged.
func (m *Manager) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	if m.client == nil {
		return 0, ErrNotConfigured
	}
	if retentionDays <= 0 {
		return 0, fmt.Errorf("retention must be at least one day")
	}

	before := m.now().AddDate(0, 0, -retentionDays)
	keys, err := m.records.DeleteOlderThan(ctx, before)
	if err != nil {
		return 0, err
	}

	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("delete backup object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}
