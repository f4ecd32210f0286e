package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dukerupert/beanjar/internal/database"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/store"
)

// memBucket implements objectClient in memory.
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemBucket() *memBucket {
	return &memBucket{objects: make(map[string][]byte)}
}

func (b *memBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if b.putErr != nil {
		return nil, b.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *memBucket) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[*in.Key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (b *memBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (b *memBucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

func testManager(t *testing.T) (*Manager, *memBucket, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	bucket := newMemBucket()
	m := NewManager(Config{Bucket: "beans", Prefix: "family", Passphrase: "correct horse"}, db,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.client = bucket
	return m, bucket, db
}

func TestSealOpen(t *testing.T) {
	plain := []byte("SQLite format 3\x00 and some beans")
	sealed, err := Seal(plain, "pw")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, plain) {
		t.Error("ciphertext contains plaintext")
	}

	got, err := Open(sealed, "pw")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Errorf("round trip = %q", got)
	}

	if _, err := Open(sealed, "wrong"); err == nil {
		t.Error("wrong passphrase should fail")
	}
	if _, err := Open(sealed[:10], "pw"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("short input err = %v", err)
	}

	again, _ := Seal(plain, "pw")
	if bytes.Equal(again[:saltSize], sealed[:saltSize]) {
		t.Error("salt reused between seals")
	}
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(Config{Bucket: "beans"}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if m.Enabled() {
		t.Fatal("manager without credentials should be disabled")
	}
	if _, err := m.Create(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("create err = %v", err)
	}
	if err := m.Restore(context.Background(), 1, filepath.Join(t.TempDir(), "x.db")); !errors.Is(err, ErrDisabled) {
		t.Errorf("restore err = %v", err)
	}
}

func TestCreateAndRestore(t *testing.T) {
	m, bucket, db := testManager(t)
	ctx := context.Background()

	members := store.NewMemberStore(db)
	kid, err := members.Create(ctx, nil, "Kid", model.RoleChild, "")
	if err != nil {
		t.Fatalf("create member: %v", err)
	}
	if err := members.AddPoints(ctx, kid.ID, 250); err != nil {
		t.Fatalf("add points: %v", err)
	}

	snap, err := m.Create(ctx)
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}
	if snap.Status != model.SnapshotCompleted || snap.SizeBytes == 0 {
		t.Errorf("snapshot = %+v", snap)
	}
	if bucket.len() != 1 {
		t.Fatalf("objects = %d, want 1", bucket.len())
	}

	dst := filepath.Join(t.TempDir(), "restored.db")
	if err := m.Restore(ctx, snap.ID, dst); err != nil {
		t.Fatalf("restore: %v", err)
	}

	restored, err := sql.Open("sqlite", dst)
	if err != nil {
		t.Fatalf("open restored: %v", err)
	}
	defer restored.Close()
	var points int
	if err := restored.QueryRow(`SELECT points FROM members WHERE id = ?`, kid.ID).Scan(&points); err != nil {
		t.Fatalf("query restored: %v", err)
	}
	if points != 250 {
		t.Errorf("restored points = %d, want 250", points)
	}

	if err := m.Restore(ctx, snap.ID, dst); !errors.Is(err, ErrExists) {
		t.Errorf("restore onto existing file err = %v", err)
	}
	if err := m.Restore(ctx, 999, filepath.Join(t.TempDir(), "y.db")); !errors.Is(err, ErrNotFound) {
		t.Errorf("restore unknown err = %v", err)
	}
}

func TestCreateRecordsUploadFailure(t *testing.T) {
	m, bucket, _ := testManager(t)
	bucket.putErr = errors.New("bucket offline")
	ctx := context.Background()

	if _, err := m.Create(ctx); err == nil {
		t.Fatal("expected upload error")
	}

	list, err := m.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Status != model.SnapshotFailed || list[0].ErrorMessage == "" {
		t.Errorf("list = %+v", list)
	}
}

func TestPrune(t *testing.T) {
	m, bucket, _ := testManager(t)
	ctx := context.Background()

	if _, err := m.Create(ctx); err != nil {
		t.Fatalf("create: %v", err)
	}

	n, err := m.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 0 || bucket.len() != 1 {
		t.Errorf("fresh snapshot pruned: n=%d objects=%d", n, bucket.len())
	}

	m.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	n, err = m.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 || bucket.len() != 0 {
		t.Errorf("old snapshot kept: n=%d objects=%d", n, bucket.len())
	}
}
