package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/pkg/cache"
)

// FileModelStore keeps one JSON file per ticker: {dir}/{TICKER}_model.json.
type FileModelStore struct {
	dir string
}

var _ domrepo.ModelStore = (*FileModelStore)(nil)

func NewFileModelStore(dir string) *FileModelStore {
	return &FileModelStore{dir: dir}
}

func (s *FileModelStore) path(ticker string) string {
	return filepath.Join(s.dir, strings.ToUpper(ticker)+"_model.json")
}

func (s *FileModelStore) Save(_ context.Context, ticker string, snap *models.ModelSnapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("model dir: %w", err)
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	// atomic replace
	tmp, err := os.CreateTemp(s.dir, ".model-*")
	if err != nil {
		return fmt.Errorf("save model: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save model: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(ticker)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save model: %w", err)
	}
	return nil
}

func (s *FileModelStore) Load(_ context.Context, ticker string) (*models.ModelSnapshot, error) {
	b, err := os.ReadFile(s.path(ticker))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ticker, models.ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	var snap models.ModelSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", ticker, err)
	}
	return &snap, nil
}

// CacheModelStore keeps snapshots in a cache.Service (memory, redis or layered).
type CacheModelStore struct {
	c   cache.Service
	ttl time.Duration
}

var _ domrepo.ModelStore = (*CacheModelStore)(nil)

func NewCacheModelStore(c cache.Service, ttl time.Duration) *CacheModelStore {
	return &CacheModelStore{c: c, ttl: ttl}
}

func (s *CacheModelStore) Save(ctx context.Context, ticker string, snap *models.ModelSnapshot) error {
	if err := s.c.Set(ctx, cache.GenerateKey("model", strings.ToUpper(ticker)), snap, s.ttl); err != nil {
		return fmt.Errorf("cache model: %w", err)
	}
	return nil
}

func (s *CacheModelStore) Load(ctx context.Context, ticker string) (*models.ModelSnapshot, error) {
	var snap models.ModelSnapshot
	err := s.c.Get(ctx, cache.GenerateKey("model", strings.ToUpper(ticker)), &snap)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, fmt.Errorf("%s: %w", ticker, models.ErrModelNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load cached model: %w", err)
	}
	return &snap, nil
}
