package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/knnmon/bank"
	"github.com/hupe1980/knnmon/blobstore"
	"github.com/hupe1980/knnmon/codec"
)

const (
	// ManifestName is the blob naming the latest snapshot.
	ManifestName = "MANIFEST.json"

	filePrefix = "bank-"
	fileSuffix = ".knnb"
)

// ErrNoSnapshot is returned when a store holds no snapshot.
var ErrNoSnapshot = errors.New("snapshot: no snapshot found")

// FileName returns the blob name of the snapshot for epoch.
func FileName(epoch int) string {
	return fmt.Sprintf("%s%08d%s", filePrefix, epoch, fileSuffix)
}

// Manifest points at the most recent snapshot.
type Manifest struct {
	Latest      string      `json:"latest"`
	Epoch       int         `json:"epoch"`
	Dim         int         `json:"dim"`
	Count       int         `json:"count"`
	Compression Compression `json:"compression"`
	Codec       string      `json:"codec"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Store saves and loads feature bank snapshots in a blobstore.Store.
// Saves are serialized; loads may run concurrently.
type Store struct {
	blobs       blobstore.Store
	codec       codec.Codec
	compression Compression
	logger      *slog.Logger
	now         func() time.Time

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithCompression sets the payload compression for new snapshots.
func WithCompression(c Compression) Option {
	return func(s *Store) { s.compression = c }
}

// WithCodec sets the codec used for the manifest.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates a snapshot store on top of blobs.
func NewStore(blobs blobstore.Store, optFns ...Option) *Store {
	s := &Store{
		blobs:       blobs,
		codec:       codec.Default,
		compression: CompressionLZ4,
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(s)
		}
	}
	return s
}

// Save writes fb and then points the manifest at it. A crash between the two
// writes leaves the previous manifest valid.
func (s *Store) Save(ctx context.Context, fb *bank.FeatureBank) (string, error) {
	data, used, err := encode(fb, s.compression)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := FileName(fb.Epoch())
	if err := s.blobs.Put(ctx, name, data); err != nil {
		return "", fmt.Errorf("write snapshot %s: %w", name, err)
	}

	m := Manifest{
		Latest:      name,
		Epoch:       fb.Epoch(),
		Dim:         fb.Dim(),
		Count:       fb.Len(),
		Compression: used,
		Codec:       s.codec.Name(),
		CreatedAt:   s.now().UTC(),
	}
	doc, err := s.codec.Marshal(m)
	if err != nil {
		return "", err
	}
	if err := s.blobs.Put(ctx, ManifestName, doc); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	s.logger.DebugContext(ctx, "snapshot saved",
		"name", name,
		"bytes", len(data),
		"compression", used.String(),
	)
	return name, nil
}

// Load reads the named snapshot.
func (s *Store) Load(ctx context.Context, name string) (*bank.FeatureBank, error) {
	data, err := blobstore.ReadAll(ctx, s.blobs, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoSnapshot, name)
		}
		return nil, err
	}
	fb, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return fb, nil
}

// Manifest reads the manifest document.
func (s *Store) Manifest(ctx context.Context) (Manifest, error) {
	doc, err := blobstore.ReadAll(ctx, s.blobs, ManifestName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Manifest{}, ErrNoSnapshot
		}
		return Manifest{}, err
	}
	var m Manifest
	if err := s.codec.Unmarshal(doc, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

// Latest loads the snapshot named by the manifest. Without a manifest it
// falls back to the snapshot with the highest epoch.
func (s *Store) Latest(ctx context.Context) (*bank.FeatureBank, string, error) {
	name := ""
	m, err := s.Manifest(ctx)
	switch {
	case err == nil:
		name = m.Latest
	case errors.Is(err, ErrNoSnapshot):
		names, err := s.List(ctx)
		if err != nil {
			return nil, "", err
		}
		if len(names) == 0 {
			return nil, "", ErrNoSnapshot
		}
		name = names[len(names)-1]
		s.logger.WarnContext(ctx, "snapshot manifest missing, using newest file", "name", name)
	default:
		return nil, "", err
	}

	fb, err := s.Load(ctx, name)
	if err != nil {
		return nil, "", err
	}
	return fb, name, nil
}

// List returns the snapshot names, oldest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.blobs.List(ctx, filePrefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if strings.HasSuffix(n, fileSuffix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// Prune deletes all but the newest keep snapshots and returns the deleted
// names. The snapshot named by the manifest is always kept. keep < 1 is
// treated as 1.
func (s *Store) Prune(ctx context.Context, keep int) ([]string, error) {
	keep = max(keep, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) <= keep {
		return nil, nil
	}

	latest := ""
	if m, err := s.Manifest(ctx); err == nil {
		latest = m.Latest
	}

	var deleted []string
	for _, n := range names[:len(names)-keep] {
		if n == latest {
			continue
		}
		if err := s.blobs.Delete(ctx, n); err != nil {
			return deleted, fmt.Errorf("delete snapshot %s: %w", n, err)
		}
		deleted = append(deleted, n)
	}
	if len(deleted) > 0 {
		s.logger.DebugContext(ctx, "snapshots pruned", "deleted", len(deleted), "kept", len(names)-len(deleted))
	}
	return deleted, nil
}
