// Package storage implements the persistence capability: opaque save/load of
// monitor configurations and scheduled-message records, called after every
// mutation. Records are JSON-shaped regardless of backend.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/tg-sentinel-go/internal/config"
	"github.com/tg-sentinel-go/internal/middleware"
	"github.com/tg-sentinel-go/internal/models"
)

// MonitorRecord is one persisted monitor: its variant tag plus the
// variant-specific config payload.
type MonitorRecord struct {
	Type   models.MonitorType `json:"type"`
	Config json.RawMessage    `json:"config"`
}

// Store is the persistence capability.
type Store interface {
	LoadMonitors(ctx context.Context) (map[string][]MonitorRecord, error)
	SaveMonitors(ctx context.Context, monitors map[string][]MonitorRecord) error
	LoadScheduled(ctx context.Context) ([]*models.ScheduledMessage, error)
	SaveScheduled(ctx context.Context, jobs []*models.ScheduledMessage) error
}

// NewStore selects the backend from config.
func NewStore(cfg *config.StorageConfig, metrics *middleware.Metrics, logger *logrus.Logger) (Store, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisStore(&cfg.Redis, metrics, logger)
	case "file":
		return NewFileStore(&cfg.File, metrics, logger), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// opStatus maps an operation result to its metric label.
func opStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// FileStore keeps both record sets as JSON files on disk.
type FileStore struct {
	monitorsPath  string
	scheduledPath string
	metrics       *middleware.Metrics
	logger        *logrus.Logger
}

func NewFileStore(cfg *config.FileStorage, metrics *middleware.Metrics, logger *logrus.Logger) *FileStore {
	return &FileStore{
		monitorsPath:  cfg.MonitorsPath,
		scheduledPath: cfg.ScheduledPath,
		metrics:       metrics,
		logger:        logger,
	}
}

func (f *FileStore) LoadMonitors(ctx context.Context) (map[string][]MonitorRecord, error) {
	out := make(map[string][]MonitorRecord)
	err := readJSON(f.monitorsPath, &out)
	f.metrics.RecordStorageOperation("load_monitors", opStatus(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileStore) SaveMonitors(ctx context.Context, monitors map[string][]MonitorRecord) error {
	err := writeJSON(f.monitorsPath, monitors)
	f.metrics.RecordStorageOperation("save_monitors", opStatus(err))
	return err
}

func (f *FileStore) LoadScheduled(ctx context.Context) ([]*models.ScheduledMessage, error) {
	var out []*models.ScheduledMessage
	err := readJSON(f.scheduledPath, &out)
	f.metrics.RecordStorageOperation("load_scheduled", opStatus(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (f *FileStore) SaveScheduled(ctx context.Context, jobs []*models.ScheduledMessage) error {
	err := writeJSON(f.scheduledPath, jobs)
	f.metrics.RecordStorageOperation("save_scheduled", opStatus(err))
	return err
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeJSON writes via a temp file and rename so a crash mid-save cannot
// truncate the previous state.
func writeJSON(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// RedisStore keeps both record sets as JSON values in Redis.
type RedisStore struct {
	client  *redis.Client
	metrics *middleware.Metrics
	logger  *logrus.Logger
}

const (
	redisMonitorsKey  = "sentinel:monitors"
	redisScheduledKey = "sentinel:scheduled"
)

func NewRedisStore(cfg *config.RedisConfig, metrics *middleware.Metrics, logger *logrus.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client, metrics: metrics, logger: logger}, nil
}

func (r *RedisStore) LoadMonitors(ctx context.Context) (map[string][]MonitorRecord, error) {
	out := make(map[string][]MonitorRecord)
	err := r.get(ctx, redisMonitorsKey, &out)
	r.metrics.RecordStorageOperation("load_monitors", opStatus(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RedisStore) SaveMonitors(ctx context.Context, monitors map[string][]MonitorRecord) error {
	err := r.set(ctx, redisMonitorsKey, monitors)
	r.metrics.RecordStorageOperation("save_monitors", opStatus(err))
	return err
}

func (r *RedisStore) LoadScheduled(ctx context.Context) ([]*models.ScheduledMessage, error) {
	var out []*models.ScheduledMessage
	err := r.get(ctx, redisScheduledKey, &out)
	r.metrics.RecordStorageOperation("load_scheduled", opStatus(err))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *RedisStore) SaveScheduled(ctx context.Context, jobs []*models.ScheduledMessage) error {
	err := r.set(ctx, redisScheduledKey, jobs)
	r.metrics.RecordStorageOperation("save_scheduled", opStatus(err))
	return err
}

func (r *RedisStore) get(ctx context.Context, key string, v interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), v)
}

func (r *RedisStore) set(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, 0).Err()
}
