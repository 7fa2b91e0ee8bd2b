package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Asset backends.
const (
	BackendDir = "dir"
	BackendS3  = "s3"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Render  RenderConfig  `mapstructure:"render"`
	Session SessionConfig `mapstructure:"session"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Storage StorageConfig `mapstructure:"storage"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORS         CORSConfig    `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// AssetsConfig says where templates and fonts come from.
type AssetsConfig struct {
	Templates    SourceConfig `mapstructure:"templates"`
	Fonts        SourceConfig `mapstructure:"fonts"`
	GalleryLimit int          `mapstructure:"gallery_limit"`
}

// SourceConfig selects a catalog backend. Dir is used by the "dir" backend,
// Prefix by the "s3" backend.
type SourceConfig struct {
	Backend string `mapstructure:"backend"`
	Dir     string `mapstructure:"dir"`
	Prefix  string `mapstructure:"prefix"`
}

type RenderConfig struct {
	OutlineMode string         `mapstructure:"outline_mode"`
	MaxFontSize int            `mapstructure:"max_font_size"`
	MaxOutline  int            `mapstructure:"max_outline"`
	Defaults    DefaultsConfig `mapstructure:"defaults"`
}

// DefaultsConfig seeds the parameters of every new session.
type DefaultsConfig struct {
	TopText          string `mapstructure:"top_text"`
	BottomText       string `mapstructure:"bottom_text"`
	Font             string `mapstructure:"font"`
	FontSize         int    `mapstructure:"font_size"`
	FillColor        string `mapstructure:"fill_color"`
	OutlineColor     string `mapstructure:"outline_color"`
	OutlineThickness int    `mapstructure:"outline_thickness"`
}

type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type UploadConfig struct {
	MaxBytes  int64 `mapstructure:"max_bytes"`
	MaxPixels int64 `mapstructure:"max_pixels"`

	ImportEnabled      bool          `mapstructure:"import_enabled"`
	ImportTimeout      time.Duration `mapstructure:"import_timeout"`
	ImportAllowPrivate bool          `mapstructure:"import_allow_private"`
}

// StorageConfig configures the S3-compatible bucket used by the "s3" asset
// backend (AWS S3, MinIO, R2).
type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
}

// Load reads configs/config.yaml (or configPath), applies defaults and
// environment overrides, and validates the result.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("server.port", "PORT")
	v.BindEnv("storage.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.access_key", "S3_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "S3_SECRET_KEY")
	v.BindEnv("storage.bucket", "S3_BUCKET")
	v.BindEnv("assets.templates.dir", "TEMPLATE_DIR")
	v.BindEnv("assets.fonts.dir", "FONT_DIR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("assets.templates.backend", BackendDir)
	v.SetDefault("assets.templates.dir", "./templates")
	v.SetDefault("assets.templates.prefix", "templates/")
	v.SetDefault("assets.fonts.backend", BackendDir)
	v.SetDefault("assets.fonts.dir", "./Fonts")
	v.SetDefault("assets.fonts.prefix", "fonts/")
	v.SetDefault("assets.gallery_limit", 9)

	v.SetDefault("render.outline_mode", "offset")
	v.SetDefault("render.max_font_size", 300)
	v.SetDefault("render.max_outline", 20)
	v.SetDefault("render.defaults.top_text", "NEON MEME")
	v.SetDefault("render.defaults.bottom_text", "GENERATOR")
	v.SetDefault("render.defaults.font", "impact.ttf")
	v.SetDefault("render.defaults.font_size", 48)
	v.SetDefault("render.defaults.fill_color", "#00FFFF")
	v.SetDefault("render.defaults.outline_color", "#FFFF00")
	v.SetDefault("render.defaults.outline_thickness", 2)

	v.SetDefault("session.idle_ttl", "1h")
	v.SetDefault("session.sweep_interval", "5m")

	v.SetDefault("upload.max_bytes", 10*1024*1024)
	v.SetDefault("upload.max_pixels", 25_000_000)
	v.SetDefault("upload.import_enabled", true)
	v.SetDefault("upload.import_timeout", "20s")
	v.SetDefault("upload.import_allow_private", false)

	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.bucket", "neonmeme")
}

// Validate checks the settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	for name, src := range map[string]SourceConfig{
		"assets.templates": c.Assets.Templates,
		"assets.fonts":     c.Assets.Fonts,
	} {
		switch src.Backend {
		case BackendDir:
			if src.Dir == "" {
				return fmt.Errorf("%s: dir is required for the %q backend", name, BackendDir)
			}
		case BackendS3:
			if c.Storage.Bucket == "" {
				return fmt.Errorf("%s: storage.bucket is required for the %q backend", name, BackendS3)
			}
		default:
			return fmt.Errorf("%s: unknown backend %q", name, src.Backend)
		}
	}

	if c.Assets.GalleryLimit <= 0 {
		return fmt.Errorf("assets.gallery_limit must be positive")
	}
	if c.Render.MaxFontSize <= 0 {
		return fmt.Errorf("render.max_font_size must be positive")
	}
	if c.Render.MaxOutline < 0 {
		return fmt.Errorf("render.max_outline must not be negative")
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive")
	}
	if c.Upload.MaxPixels <= 0 {
		return fmt.Errorf("upload.max_pixels must be positive")
	}
	return nil
}

// UsesS3 reports whether any asset source reads from object storage.
func (c *Config) UsesS3() bool {
	return c.Assets.Templates.Backend == BackendS3 || c.Assets.Fonts.Backend == BackendS3
}
