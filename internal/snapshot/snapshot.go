// Package snapshot pushes encrypted copies of the bean ledger to
// S3-compatible object storage and restores them.
package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/store"
)

var (
	ErrDisabled = errors.New("snapshot: object storage not configured")
	ErrNotFound = errors.New("snapshot: not found")
	ErrExists   = errors.New("snapshot: restore target already exists")
	ErrCorrupt  = errors.New("snapshot: integrity check failed")
)

// objectClient is the subset of the S3 API snapshots need.
type objectClient interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Config points at the bucket and carries the encryption passphrase.
type Config struct {
	Endpoint   string
	Bucket     string
	Region     string
	AccessKey  string
	SecretKey  string
	Prefix     string
	Passphrase string
}

// Enabled reports whether enough is set to talk to a bucket.
func (c Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != "" && c.Passphrase != ""
}

type Manager struct {
	mu        sync.Mutex
	cfg       Config
	db        *sql.DB
	snapshots *store.SnapshotStore
	client    objectClient
	logger    *slog.Logger
	now       func() time.Time
}

// NewManager builds a manager. When cfg is incomplete every operation
// returns ErrDisabled.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:       cfg,
		db:        db,
		snapshots: store.NewSnapshotStore(db),
		logger:    logger,
		now:       time.Now,
	}
	if cfg.Enabled() {
		m.client = newS3Client(cfg)
	}
	return m
}

func newS3Client(cfg Config) *s3.Client {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

func (m *Manager) Enabled() bool {
	return m.client != nil
}

func (m *Manager) objectKey(filename string) string {
	if m.cfg.Prefix == "" {
		return filename
	}
	return m.cfg.Prefix + "/" + filename
}

// Create copies the live database with VACUUM INTO, encrypts the copy and
// uploads it. Only one snapshot runs at a time.
func (m *Manager) Create(ctx context.Context) (*model.Snapshot, error) {
	if m.client == nil {
		return nil, ErrDisabled
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	filename := fmt.Sprintf("beanjar-%s.db.enc", m.now().UTC().Format("20060102T150405.000Z"))
	rec, err := m.snapshots.Create(ctx, filename, m.objectKey(filename))
	if err != nil {
		return nil, err
	}

	size, err := m.upload(ctx, rec)
	if err != nil {
		if markErr := m.snapshots.MarkFailed(ctx, rec.ID, err.Error()); markErr != nil {
			m.logger.Error("failed to record snapshot failure", "snapshot_id", rec.ID, "error", markErr)
		}
		m.logger.Error("snapshot failed", "snapshot_id", rec.ID, "error", err)
		return nil, err
	}
	if err := m.snapshots.MarkCompleted(ctx, rec.ID, size); err != nil {
		return nil, err
	}

	m.logger.Info("snapshot uploaded", "snapshot_id", rec.ID, "key", rec.ObjectKey, "bytes", size)
	return m.snapshots.GetByID(ctx, rec.ID)
}

func (m *Manager) upload(ctx context.Context, rec *model.Snapshot) (int64, error) {
	dir, err := os.MkdirTemp("", "beanjar-snapshot-")
	if err != nil {
		return 0, fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	copyPath := filepath.Join(dir, "copy.db")
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, copyPath); err != nil {
		return 0, fmt.Errorf("vacuum into: %w", err)
	}
	plain, err := os.ReadFile(copyPath)
	if err != nil {
		return 0, fmt.Errorf("read copy: %w", err)
	}

	sealed, err := Seal(plain, m.cfg.Passphrase)
	if err != nil {
		return 0, err
	}

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.Bucket),
		Key:           aws.String(rec.ObjectKey),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return 0, fmt.Errorf("upload: %w", err)
	}
	return int64(len(sealed)), nil
}

func (m *Manager) List(ctx context.Context, limit int) ([]model.Snapshot, error) {
	return m.snapshots.List(ctx, limit)
}

// Restore downloads snapshot id, checks it decrypts to a sound SQLite file
// and writes it to dst. dst must not exist; the live database is never
// touched.
func (m *Manager) Restore(ctx context.Context, id int64, dst string) error {
	if m.client == nil {
		return ErrDisabled
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("%w: %s", ErrExists, dst)
	}

	rec, err := m.snapshots.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status != model.SnapshotCompleted {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(rec.ObjectKey),
	})
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	plain, err := Open(sealed, m.cfg.Passphrase)
	if err != nil {
		return err
	}

	tmp := dst + ".partial"
	if err := os.WriteFile(tmp, plain, 0o600); err != nil {
		return fmt.Errorf("write restore: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("move restore into place: %w", err)
	}

	m.logger.Info("snapshot restored", "snapshot_id", id, "path", dst)
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored db: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&result); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupt, result)
	}
	return nil
}

// Prune deletes snapshots older than retention from the bucket and the
// ledger. Object deletions that fail are logged and skipped.
func (m *Manager) Prune(ctx context.Context, retention time.Duration) (int, error) {
	if m.client == nil {
		return 0, ErrDisabled
	}
	keys, err := m.snapshots.DeleteOlderThan(ctx, m.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	for _, key := range keys {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Warn("failed to delete snapshot object", "key", key, "error", err)
		}
	}
	return len(keys), nil
}

// Run takes a snapshot every interval and prunes old ones until ctx ends.
func (m *Manager) Run(ctx context.Context, interval, retention time.Duration) {
	if m.client == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Create(ctx); err != nil {
				continue
			}
			if retention > 0 {
				if n, err := m.Prune(ctx, retention); err != nil {
					m.logger.Error("snapshot prune failed", "error", err)
				} else if n > 0 {
					m.logger.Info("snapshots pruned", "count", n)
				}
			}
		}
	}
}
