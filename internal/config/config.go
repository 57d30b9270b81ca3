package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/spf13/viper"

	"github.com/jask/unimarket/internal/catalog"
)

// Config holds application configuration.
type Config struct {
	API             APIConfig          `mapstructure:"api"`
	CapabilityFlags CapabilitiesConfig `mapstructure:"capabilities"`
	Catalog         CatalogConfig      `mapstructure:"catalog"`
	Images          ImagesConfig       `mapstructure:"images"`
	Database        DatabaseConfig     `mapstructure:"database"`
	Log             LogConfig          `mapstructure:"log"`
}

// APIConfig describes how to reach the marketplace service.
type APIConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	LoginEncoding string        `mapstructure:"login_encoding"`
}

// CapabilitiesConfig toggles optional server features.
type CapabilitiesConfig struct {
	SortOrder   bool `mapstructure:"sort_order"`
	ImageUpload bool `mapstructure:"image_upload"`
}

// CatalogConfig holds the initial listing view.
type CatalogConfig struct {
	PageSize int    `mapstructure:"page_size"`
	SortBy   string `mapstructure:"sort_by"`
	Order    string `mapstructure:"order"`
}

// ImagesConfig describes where the server publishes uploaded item images.
type ImagesConfig struct {
	Path       string   `mapstructure:"path"`
	Extensions []string `mapstructure:"extensions"`
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig holds the log sink; the TUI owns stdout so logs go to a file.
type LogConfig struct {
	Path  string `mapstructure:"path"`
	Level string `mapstructure:"level"`
}

const envPrefix = "UNIMARKET"

func dataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".local", "share", "unimarket")
}

func defaultPath() string {
	return filepath.Join(os.Getenv("HOME"), ".config", "unimarket", "config.toml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000")
	v.SetDefault("api.timeout", "15s")
	v.SetDefault("api.login_encoding", "form")
	v.SetDefault("capabilities.sort_order", true)
	v.SetDefault("capabilities.image_upload", true)
	v.SetDefault("catalog.page_size", catalog.DefaultPageSize)
	v.SetDefault("catalog.sort_by", string(catalog.SortByName))
	v.SetDefault("catalog.order", string(catalog.Ascending))
	v.SetDefault("images.path", "/uploads/items")
	v.SetDefault("images.extensions", []string{"jpg", "png"})
	v.SetDefault("database.path", filepath.Join(dataDir(), "unimarket.db"))
	v.SetDefault("log.path", filepath.Join(dataDir(), "unimarket.log"))
	v.SetDefault("log.level", "info")
}

// Load reads configuration from file and env. Env var overrides use prefix UNIMARKET_.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if cfgPath := os.Getenv("UNIMARKET_CONFIG"); cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Dir(defaultPath()))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, errors.Wrap(err, "read config")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "unmarshal config")
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the client cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("config: api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	switch c.API.LoginEncoding {
	case "form", "json":
	default:
		return errors.Errorf("config: api.login_encoding %q must be form or json", c.API.LoginEncoding)
	}
	if c.API.Timeout < 0 {
		return errors.Errorf("config: api.timeout must not be negative")
	}
	if c.Catalog.PageSize < 1 {
		return errors.Errorf("config: catalog.page_size must be at least 1")
	}
	if _, err := catalog.ParseSortKey(c.Catalog.SortBy); err != nil {
		return errors.Wrap(err, "config: catalog.sort_by")
	}
	if _, err := catalog.ParseSortOrder(c.Catalog.Order); err != nil {
		return errors.Wrap(err, "config: catalog.order")
	}
	if len(c.Images.Extensions) == 0 {
		return errors.New("config: images.extensions must list at least one extension")
	}
	return nil
}

// Capabilities maps the feature toggles onto the catalog engine.
func (c Config) Capabilities() catalog.Capabilities {
	return catalog.Capabilities{
		SupportsSortOrder:   c.CapabilityFlags.SortOrder,
		SupportsImageUpload: c.CapabilityFlags.ImageUpload,
	}
}

// InitialView is the listing the client opens with. Validate has already
// checked the sort settings, so parse errors are impossible here.
func (c Config) InitialView() catalog.ViewState {
	key, _ := catalog.ParseSortKey(c.Catalog.SortBy)
	order, _ := catalog.ParseSortOrder(c.Catalog.Order)
	return catalog.ViewState{
		SortKey:   key,
		SortOrder: order,
		PageSize:  c.Catalog.PageSize,
	}
}

// Save writes the provided config to disk, creating the config directory if needed.
// The session token is never written here; it lives in the sealed local store.
func Save(cfg Config) error {
	path := os.Getenv("UNIMARKET_CONFIG")
	if path == "" {
		path = defaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir config dir")
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("api.base_url", cfg.API.BaseURL)
	v.Set("api.timeout", cfg.API.Timeout.String())
	v.Set("api.login_encoding", cfg.API.LoginEncoding)
	v.Set("capabilities.sort_order", cfg.CapabilityFlags.SortOrder)
	v.Set("capabilities.image_upload", cfg.CapabilityFlags.ImageUpload)
	v.Set("catalog.page_size", cfg.Catalog.PageSize)
	v.Set("catalog.sort_by", cfg.Catalog.SortBy)
	v.Set("catalog.order", cfg.Catalog.Order)
	v.Set("images.path", cfg.Images.Path)
	v.Set("images.extensions", cfg.Images.Extensions)
	v.Set("database.path", cfg.Database.Path)
	v.Set("log.path", cfg.Log.Path)
	v.Set("log.level", cfg.Log.Level)

	if err := v.WriteConfigAs(path); err != nil {
		return errors.Wrap(err, "write config")
	}
	return nil
}
