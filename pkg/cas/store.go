package cas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"

	"github.com/tobert/hootenanny-go/internal/telemetry"
)

// Reference is an immutable-once-stored description of a blob (spec.md §3
// "CAS Reference").
type Reference struct {
	Hash       Hash
	MimeType   string
	SizeBytes  int64
	LocalPath  string
}

// ErrReadOnly is returned by every mutating operation when the store was
// constructed with ReadOnly(true).
var ErrReadOnly = errors.New("cas: store is read-only")

// metadataSidecar is the on-disk JSON shape under metadata/.
type metadataSidecar struct {
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Store is a directory-sharded, content-addressed blob store
// (spec.md §4.3 Layout).
type Store struct {
	root        string
	readOnly    bool
	metadataOn  bool
	logger      telemetry.Logger
	tracer      telemetry.Tracer
}

// Option configures a Store.
type Option func(*Store)

// ReadOnly forbids store/seal/create_staging, returning ErrReadOnly.
func ReadOnly(ro bool) Option {
	return func(s *Store) { s.readOnly = ro }
}

// WithMetadata enables writing a JSON sidecar alongside every sealed
// object (spec.md §4.3 Operations: "if metadata enabled and sidecar
// absent, write {mime_type, size}").
func WithMetadata(on bool) Option {
	return func(s *Store) { s.metadataOn = on }
}

// WithLogger attaches a structured logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithTracer attaches a tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(s *Store) { s.tracer = t }
}

// New constructs a Store rooted at root, creating the objects/, metadata/,
// and staging/ directories if absent.
func New(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:       root,
		metadataOn: true,
		logger:     telemetry.NewNoopLogger(),
		tracer:     telemetry.NewNoopTracer(),
	}
	for _, o := range opts {
		o(s)
	}
	for _, sub := range []string{"objects", "metadata", "staging"} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			return nil, fmt.Errorf("cas: create %s dir: %w", sub, err)
		}
	}
	return s, nil
}

func (s *Store) objectPath(h Hash) string {
	return filepath.Join(s.root, "objects", h.Prefix(), h.Remainder())
}

func (s *Store) metadataPath(h Hash) string {
	return filepath.Join(s.root, "metadata", h.Prefix(), h.Remainder()+".json")
}

func (s *Store) stagingPath(id string) string {
	return filepath.Join(s.root, "staging", id[:2], id[2:])
}

// Store writes b under its content hash, skipping the write if the object
// already exists (dedup), and returns the hash. Concurrent Store calls for
// identical content all return the same hash and leave exactly one object
// file on disk (spec.md §4.3 Invariants).
func (s *Store) Store(ctx context.Context, b []byte, mime string) (Hash, error) {
	ctx, span := s.tracer.Start(ctx, "cas.store")
	defer span.End()

	if s.readOnly {
		return "", ErrReadOnly
	}
	h := Sum(b)
	path := s.objectPath(h)
	if _, err := os.Stat(path); err == nil {
		return h, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("cas: stat object %s: %w", h, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("cas: create object shard dir: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("cas: atomically write object %s: %w", h, err)
	}
	if s.metadataOn {
		if err := s.writeMetadataIfAbsent(h, mime, int64(len(b))); err != nil {
			s.logger.Warn(ctx, "cas: write metadata sidecar failed", "hash", h, "err", err)
		}
	}
	return h, nil
}

func (s *Store) writeMetadataIfAbsent(h Hash, mime string, size int64) error {
	mp := s.metadataPath(h)
	if _, err := os.Stat(mp); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(mp), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(metadataSidecar{MimeType: mime, Size: size})
	if err != nil {
		return err
	}
	return renameio.WriteFile(mp, data, 0o644)
}

// Retrieve reads the full blob for hash, or (nil, nil) if absent.
func (s *Store) Retrieve(_ context.Context, h Hash) ([]byte, error) {
	b, err := os.ReadFile(s.objectPath(h))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Exists reports whether hash is present in the store.
func (s *Store) Exists(_ context.Context, h Hash) (bool, error) {
	_, err := os.Stat(s.objectPath(h))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Path returns the on-disk path of the sealed object, so downstream
// processes can mmap it directly, or ("", nil) if absent.
func (s *Store) Path(_ context.Context, h Hash) (string, error) {
	p := s.objectPath(h)
	if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return p, nil
}

// Inspect returns a Reference for hash, reading the sidecar if present or
// synthesizing one with application/octet-stream and the stat'd size
// (spec.md §4.3 Operations).
func (s *Store) Inspect(_ context.Context, h Hash) (*Reference, error) {
	path := s.objectPath(h)
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	ref := &Reference{Hash: h, LocalPath: path, MimeType: "application/octet-stream", SizeBytes: info.Size()}
	mdBytes, err := os.ReadFile(s.metadataPath(h))
	if err == nil {
		var sc metadataSidecar
		if jErr := json.Unmarshal(mdBytes, &sc); jErr == nil {
			ref.MimeType = sc.MimeType
			ref.SizeBytes = sc.Size
		}
	}
	return ref, nil
}

// Staging is an opaque handle returned by CreateStaging (spec.md §3
// "Staging Id").
type Staging struct {
	ID   string
	path string
	file *os.File
}

// CreateStaging opens a new staging buffer for incremental writes.
func (s *Store) CreateStaging(ctx context.Context) (*Staging, error) {
	if s.readOnly {
		return nil, ErrReadOnly
	}
	id := uuid.New().String()
	path := s.stagingPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("cas: create staging shard dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cas: open staging file: %w", err)
	}
	_, span := s.tracer.Start(ctx, "cas.create_staging")
	span.End()
	return &Staging{ID: id, path: path, file: f}, nil
}

// Write appends b to the staging buffer.
func (st *Staging) Write(b []byte) error {
	_, err := st.file.Write(b)
	return err
}

// Flush fsyncs the staging buffer to disk without sealing it.
func (st *Staging) Flush() error {
	return st.file.Sync()
}

// SealResult is the outcome of promoting a staging buffer into the store.
type SealResult struct {
	Hash      Hash
	Path      string
	SizeBytes int64
}

// Seal computes the hash of the staged bytes and promotes the staging file
// into objects/ under that hash, preferring an atomic rename and falling
// back to copy+unlink across filesystems (spec.md §4.3). If the hash
// already exists, the staging file is discarded without overwriting —
// dedup wins.
func (s *Store) Seal(ctx context.Context, st *Staging, mime string) (*SealResult, error) {
	ctx, span := s.tracer.Start(ctx, "cas.seal")
	defer span.End()

	if s.readOnly {
		return nil, ErrReadOnly
	}
	if err := st.file.Close(); err != nil {
		return nil, fmt.Errorf("cas: close staging file: %w", err)
	}

	info, err := os.Stat(st.path)
	if err != nil {
		return nil, fmt.Errorf("cas: stat staging file: %w", err)
	}
	b, err := os.ReadFile(st.path)
	if err != nil {
		return nil, fmt.Errorf("cas: read staging file for hashing: %w", err)
	}
	h := Sum(b)
	dest := s.objectPath(h)

	if _, err := os.Stat(dest); err == nil {
		// Dedup wins: discard the staging file, never overwrite the sealed one.
		if rmErr := os.Remove(st.path); rmErr != nil {
			s.logger.Warn(ctx, "cas: remove deduped staging file failed", "path", st.path, "err", rmErr)
		}
		return &SealResult{Hash: h, Path: dest, SizeBytes: info.Size()}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("cas: create object shard dir: %w", err)
	}
	if err := os.Rename(st.path, dest); err != nil {
		// Rename failed — most commonly EXDEV when staging/ and objects/ live on
		// different filesystems. Degrade to copy+unlink rather than inspecting
		// the platform-specific errno, since that fallback is always safe.
		if cErr := renameio.WriteFile(dest, b, 0o644); cErr != nil {
			return nil, fmt.Errorf("cas: cross-device copy into objects (after rename failed: %v): %w", err, cErr)
		}
		if rmErr := os.Remove(st.path); rmErr != nil {
			s.logger.Warn(ctx, "cas: remove staging file after cross-device copy failed", "path", st.path, "err", rmErr)
		}
	}

	if s.metadataOn {
		if err := s.writeMetadataIfAbsent(h, mime, info.Size()); err != nil {
			s.logger.Warn(ctx, "cas: write metadata sidecar failed", "hash", h, "err", err)
		}
	}
	return &SealResult{Hash: h, Path: dest, SizeBytes: info.Size()}, nil
}

// RemoveStaging discards an in-progress staging write.
func (s *Store) RemoveStaging(_ context.Context, st *Staging) error {
	if s.readOnly {
		return ErrReadOnly
	}
	_ = st.file.Close()
	err := os.Remove(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
