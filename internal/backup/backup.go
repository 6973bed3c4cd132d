// Package backup writes encrypted copies of the device database to
// S3-compatible storage and restores them.
package backup

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
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	_ "modernc.org/sqlite"
)

// ErrNotConfigured is returned when no bucket or credentials are set.
var ErrNotConfigured = errors.New("backup not configured: S3 bucket or credentials missing")

// Client is the subset of the S3 API the manager uses.
type Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, input *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Config holds S3-compatible storage settings.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Enabled reports whether enough is set to reach a bucket.
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// NewS3Client builds a path-style client, which works for MinIO and most
// S3-compatible providers as well as AWS.
func NewS3Client(cfg S3Config) *s3.Client {
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

// Object describes one stored backup.
type Object struct {
	Key  string    `json:"key"`
	Size int64     `json:"size"`
	At   time.Time `json:"at"`
}

// Manager copies one family's database to a bucket under "<family id>/".
type Manager struct {
	client Client
	bucket string
	prefix string
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// NewManager returns a manager. A nil client leaves every operation
// returning ErrNotConfigured.
func NewManager(client Client, bucket, familyID string, db *sql.DB, logger *slog.Logger) *Manager {
	return &Manager{
		client: client,
		bucket: bucket,
		prefix: familyID + "/",
		db:     db,
		now:    time.Now,
		logger: logger,
	}
}

// Run snapshots the database with VACUUM INTO, encrypts it and uploads
// it. It returns the object key.
func (m *Manager) Run(ctx context.Context, passphrase string) (string, error) {
	if m.client == nil {
		return "", ErrNotConfigured
	}
	if passphrase == "" {
		return "", errors.New("backup passphrase is required")
	}

	dir, err := os.MkdirTemp("", "tvtime-backup-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "snapshot.db")
	if _, err := m.db.ExecContext(ctx, "VACUUM INTO ?", snapshot); err != nil {
		return "", fmt.Errorf("snapshot database: %w", err)
	}
	plaintext, err := os.ReadFile(snapshot)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	sealed, err := Seal(plaintext, passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt snapshot: %w", err)
	}

	key := m.prefix + "tvtime-" + m.now().UTC().Format("2006-01-02T150405Z") + ".db.enc"
	if _, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	}); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	m.logger.Info("backup uploaded", "key", key, "bytes", len(sealed))
	return key, nil
}

// List returns this family's backups, oldest first.
func (m *Manager) List(ctx context.Context) ([]Object, error) {
	if m.client == nil {
		return nil, ErrNotConfigured
	}
	var objects []Object
	p := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list backups: %w", err)
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if !strings.HasSuffix(key, ".db.enc") {
				continue
			}
			objects = append(objects, Object{Key: key, Size: aws.ToInt64(o.Size), At: aws.ToTime(o.LastModified)})
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Restore downloads key, decrypts it, checks its integrity and writes it
// to dst. The running database is not touched; the caller swaps files
// while the device is stopped.
func (m *Manager) Restore(ctx context.Context, key, passphrase, dst string) error {
	if m.client == nil {
		return ErrNotConfigured
	}
	if !strings.HasPrefix(key, m.prefix) {
		return fmt.Errorf("backup %q does not belong to this family", key)
	}

	out, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("download backup: %w", err)
	}
	defer out.Body.Close()

	sealed, err := io.ReadAll(out.Body)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	plaintext, err := Open(sealed, passphrase)
	if err != nil {
		return fmt.Errorf("decrypt backup: %w", err)
	}

	tmp := dst + ".restore"
	if err := os.WriteFile(tmp, plaintext, 0600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	if err := checkIntegrity(ctx, tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dst + "-wal")
	os.Remove(dst + "-shm")

	m.logger.Info("backup restored", "key", key, "path", dst)
	return nil
}

// Prune deletes all but the newest keep backups and returns how many
// were removed.
func (m *Manager) Prune(ctx context.Context, keep int) (int, error) {
	objects, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	if len(objects) <= keep {
		return 0, nil
	}

	removed := 0
	for _, o := range objects[:len(objects)-keep] {
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.bucket),
			Key:    aws.String(o.Key),
		}); err != nil {
			m.logger.Warn("failed to delete backup", "key", o.Key, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}
