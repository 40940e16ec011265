package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/homeworkhero/internal/config"
)

var ErrNotFound = errors.New("result not found")

// Store keeps finished worksheets. Save returns a reference that Load accepts.
type Store interface {
	Save(ctx context.Context, jobID string, data []byte) (string, error)
	Load(ctx context.Context, ref string) ([]byte, error)
	Probe(ctx context.Context) error
}

// New builds the Store selected by cfg.Backend.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "local":
		return NewLocalStore(cfg.ResultDir, cfg.Passphrase), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("storage backend s3 requires AWS_S3_BUCKET")
		}
		return NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.Passphrase)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ResultName is the file name a job's worksheet is saved under.
func ResultName(jobID string) string { return jobID + "_worksheet.json" }

// LocalStore writes results under a directory, encrypting when a passphrase is set.
type LocalStore struct {
	dir        string
	passphrase string
}

func NewLocalStore(dir, passphrase string) *LocalStore {
	if dir == "" {
		dir = "results"
	}
	return &LocalStore{dir: dir, passphrase: passphrase}
}

func (s *LocalStore) Save(ctx context.Context, jobID string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	if s.passphrase != "" {
		enc, err := Encrypt(data, s.passphrase)
		if err != nil {
			return "", err
		}
		data = enc
	}
	p := filepath.Join(s.dir, ResultName(jobID))
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	log.Debug().Str("job_id", jobID).Str("path", p).Bool("encrypted", s.passphrase != "").Msg("saved worksheet locally")
	return "file://" + p, nil
}

func (s *LocalStore) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := strings.CutPrefix(ref, "file://")
	if !ok {
		return nil, fmt.Errorf("not a local result reference: %q", ref)
	}
	// Only files inside the result directory are served.
	if rel, err := filepath.Rel(s.dir, p); err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("result reference outside %s: %q", s.dir, ref)
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, err
	}
	return maybeDecrypt(b, s.passphrase)
}

// Probe checks that the result directory exists or can be created.
func (s *LocalStore) Probe(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	fi, err := os.Stat(s.dir)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return fmt.Errorf("%s is not a directory", s.dir)
	}
	return nil
}

func maybeDecrypt(b []byte, passphrase string) ([]byte, error) {
	if !IsEncrypted(b) {
		return b, nil
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: result is encrypted and no passphrase is configured", ErrDecrypt)
	}
	return Decrypt(b, passphrase)
}
