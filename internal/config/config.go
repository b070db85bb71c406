package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/timelapse"
)

// Config 应用配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Field     FieldConfig     `yaml:"field"`
	Timelapse TimelapseConfig `yaml:"timelapse"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	Port      string `yaml:"port"`
	JWTSecret string `yaml:"jwtSecret"`
	Debug     bool   `yaml:"debug"`

	// 每个 IP 在 RateWindow 内允许的请求数，0 表示不限流
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// DatabaseConfig holds the archive location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// FieldConfig tunes the clustering worker
type FieldConfig struct {
	KAnonymityFloor    int     `yaml:"kAnonymityFloor"`
	BaseMergeDistance  float64 `yaml:"baseMergeDistance"`
	MergeReferenceZoom float64 `yaml:"mergeReferenceZoom"`
	MinConvergenceZoom float64 `yaml:"minConvergenceZoom"`
	MailboxSize        int     `yaml:"mailboxSize"`

	// FrameInterval paces both signal recomputation and playback steps
	FrameInterval time.Duration `yaml:"frameInterval"`
}

// TimelapseConfig tunes capture, playback and archiving
type TimelapseConfig struct {
	RingCapacity     int           `yaml:"ringCapacity"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	CaptureTick      time.Duration `yaml:"captureTick"`
	FlowStride       float64       `yaml:"flowStride"`
	MaxFlowPoints    int           `yaml:"maxFlowPoints"`
	MaxStorms        int           `yaml:"maxStorms"`
	Archive          bool          `yaml:"archive"`

	// 归档保留时长，0 表示永久保留
	Retention time.Duration `yaml:"retention"`
}

// Default returns the built-in configuration
func Default() *Config {
	cc := cluster.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:       ":8080",
			RateLimit:  600,
			RateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path: "./data/field/field.db",
		},
		Field: FieldConfig{
			KAnonymityFloor:    cc.KAnonymityFloor,
			BaseMergeDistance:  cc.BaseMergeDistance,
			MergeReferenceZoom: cc.MergeReferenceZoom,
			MinConvergenceZoom: cc.MinConvergenceZoom,
			MailboxSize:        cluster.DefaultMailboxSize,
			FrameInterval:      cc.SignalInterval,
		},
		Timelapse: TimelapseConfig{
			RingCapacity:     timelapse.DefaultCapacity,
			SnapshotInterval: timelapse.DefaultSnapshotInterval,
			CaptureTick:      time.Second,
			FlowStride:       timelapse.DefaultFlowStride,
			MaxFlowPoints:    timelapse.DefaultMaxFlowPoints,
			MaxStorms:        timelapse.DefaultMaxStorms,
			Archive:          true,
			Retention:        24 * time.Hour,
		},
	}
}

// Load 加载配置：默认值 -> FIELD_CONFIG 指定的 YAML 文件 -> 环境变量
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("FIELD_CONFIG"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
		log.Printf("[Config] Loaded %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays a YAML file onto cfg. Keys missing from the file keep
// their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		c.Database.Path = dbPath
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Server.JWTSecret = secret
	}

	if v := os.Getenv("FIELD_DEBUG"); v != "" {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FIELD_DEBUG %q: %w", v, err)
		}
		c.Server.Debug = debug
	}
	if v := os.Getenv("FIELD_SNAPSHOT_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid FIELD_SNAPSHOT_INTERVAL %q: %w", v, err)
		}
		c.Timelapse.SnapshotInterval = d
	}
	if v := os.Getenv("FIELD_RING_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FIELD_RING_CAPACITY %q: %w", v, err)
		}
		c.Timelapse.RingCapacity = n
	}
	if v := os.Getenv("FIELD_K_FLOOR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid FIELD_K_FLOOR %q: %w", v, err)
		}
		c.Field.KAnonymityFloor = n
	}
	return nil
}

// Validate rejects settings the engine cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is empty"))
	}
	if c.Field.KAnonymityFloor < 1 {
		errs = append(errs, fmt.Errorf("field.kAnonymityFloor must be >= 1, got %d", c.Field.KAnonymityFloor))
	}
	if c.Field.BaseMergeDistance <= 0 {
		errs = append(errs, fmt.Errorf("field.baseMergeDistance must be positive, got %g", c.Field.BaseMergeDistance))
	}
	if c.Field.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("field.frameInterval must be positive, got %s", c.Field.FrameInterval))
	}
	if c.Timelapse.RingCapacity <= 0 {
		errs = append(errs, fmt.Errorf("timelapse.ringCapacity must be positive, got %d", c.Timelapse.RingCapacity))
	}
	if c.Timelapse.SnapshotInterval <= 0 {
		errs = append(errs, fmt.Errorf("timelapse.snapshotInterval must be positive, got %s", c.Timelapse.SnapshotInterval))
	}
	if c.Timelapse.CaptureTick <= 0 {
		errs = append(errs, fmt.Errorf("timelapse.captureTick must be positive, got %s", c.Timelapse.CaptureTick))
	}
	if c.Timelapse.Retention < 0 {
		errs = append(errs, fmt.Errorf("timelapse.retention must not be negative, got %s", c.Timelapse.Retention))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rateLimit must not be negative, got %d", c.Server.RateLimit))
	}
	return errors.Join(errs...)
}

// Cluster builds the engine configuration
func (f FieldConfig) Cluster() cluster.Config {
	cc := cluster.DefaultConfig()
	cc.KAnonymityFloor = f.KAnonymityFloor
	cc.BaseMergeDistance = f.BaseMergeDistance
	cc.MergeReferenceZoom = f.MergeReferenceZoom
	cc.MinConvergenceZoom = f.MinConvergenceZoom
	cc.SignalInterval = f.FrameInterval
	return cc
}

// ControllerOptions builds the time-lapse controller options. Playback
// steps share the field frame interval.
func (c *Config) ControllerOptions() []timelapse.ControllerOption {
	return []timelapse.ControllerOption{
		timelapse.WithSnapshotInterval(c.Timelapse.SnapshotInterval),
		timelapse.WithStepInterval(c.Field.FrameInterval),
		timelapse.WithDownsampling(c.Timelapse.FlowStride, c.Timelapse.MaxFlowPoints, c.Timelapse.MaxStorms),
	}
}
