package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"invoice-scan/pkg/models"
)

// Ledger keeps track of what the upload directory holds so old files can be
// expired.
type Ledger interface {
	Track(ctx context.Context, f models.StoredFile) error
	Expired(ctx context.Context, cutoff time.Time) ([]string, error)
	Forget(ctx context.Context, name string) error
}

// Store is the upload directory. Files with the same name overwrite each
// other and there is no locking between requests.
type Store struct {
	dir    string
	ledger Ledger
	logger *zap.Logger
}

// NewStore creates dir if needed. A nil ledger falls back to DirLedger.
func NewStore(dir string, ledger Ledger, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload folder: %w", err)
	}
	if ledger == nil {
		ledger = DirLedger{Dir: dir}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, ledger: ledger, logger: logger}, nil
}

func (s *Store) Dir() string { return s.dir }

// Path joins a sanitized name to the upload directory.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Exists reports whether name is a regular file in the store.
func (s *Store) Exists(name string) bool {
	st, err := os.Stat(s.Path(name))
	return err == nil && st.Mode().IsRegular()
}

// SaveUpload copies the multipart file to name and returns its path.
func (s *Store) SaveUpload(ctx context.Context, fh *multipart.FileHeader, name string) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	path := s.Path(name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(dst, h), src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	s.track(ctx, models.StoredFile{
		Name:   name,
		Kind:   models.KindUpload,
		Size:   n,
		SHA256: hex.EncodeToString(h.Sum(nil)),
	})
	return path, nil
}

// SaveImage encodes img to name; the format follows the extension.
func (s *Store) SaveImage(ctx context.Context, img image.Image, name string) (string, error) {
	path := s.Path(name)
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("save image %s: %w", name, err)
	}

	f := models.StoredFile{Name: name, Kind: models.KindDerived}
	if size, sum, err := digest(path); err == nil {
		f.Size, f.SHA256 = size, sum
	}
	s.track(ctx, f)
	return path, nil
}

// Remove deletes name. A missing file is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := os.Remove(s.Path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	if err := s.ledger.Forget(ctx, name); err != nil {
		s.logger.Warn("ledger forget failed", zap.String("name", name), zap.Error(err))
	}
	return nil
}

// Expired lists names last written before cutoff.
func (s *Store) Expired(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.ledger.Expired(ctx, cutoff)
}

func (s *Store) track(ctx context.Context, f models.StoredFile) {
	if err := s.ledger.Track(ctx, f); err != nil {
		s.logger.Warn("ledger track failed", zap.String("name", f.Name), zap.Error(err))
	}
}

func digest(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", err
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

// DirLedger derives expiry from file modification times.
type DirLedger struct {
	Dir string
}

func (DirLedger) Track(context.Context, models.StoredFile) error { return nil }

func (DirLedger) Forget(context.Context, string) error { return nil }

func (l DirLedger) Expired(_ context.Context, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
