package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Eldoprano/offline-browser-translate/pkg/providers"
)

// Config 应用配置
type Config struct {
	// 语言
	TargetLanguage string `mapstructure:"target_language"`
	SourceLanguage string `mapstructure:"source_language"`

	// 提供商
	Provider    string        `mapstructure:"provider"`
	APIEndpoint string        `mapstructure:"api_endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`

	// 引擎
	BatchSize     int  `mapstructure:"batch_size"`
	RetryAttempts int  `mapstructure:"retry_attempts"`
	AutoTranslate bool `mapstructure:"auto_translate"`

	// 缓存
	CacheEnabled bool   `mapstructure:"cache_enabled"`
	CachePath    string `mapstructure:"cache_path"`

	// 控制服务
	Server ServerConfig `mapstructure:"server"`

	// 浏览器
	Browser BrowserConfig `mapstructure:"browser"`

	// 调试
	Debug bool `mapstructure:"debug"`
}

// ServerConfig 控制服务配置
type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// BrowserConfig 浏览器接入配置
type BrowserConfig struct {
	// ControlURL 已有浏览器的DevTools地址，为空时自启动一个
	ControlURL string `mapstructure:"control_url"`
	Headless   bool   `mapstructure:"headless"`
	// ViewportWidth/Height 文件输入时的合成视口
	ViewportWidth  int `mapstructure:"viewport_width"`
	ViewportHeight int `mapstructure:"viewport_height"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		TargetLanguage: "en",
		SourceLanguage: "auto",
		Provider:       "ollama",
		Temperature:    0.3,
		MaxTokens:      4096,
		Timeout:        5 * time.Minute,
		BatchSize:      8,
		RetryAttempts:  3,
		AutoTranslate:  true,
		CacheEnabled:   true,
		CachePath:      defaultCachePath(),
		Server: ServerConfig{
			Addr:           "127.0.0.1:8490",
			AllowedOrigins: defaultAllowedOrigins(),
		},
		Browser: BrowserConfig{
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
	}
}

// Load 加载配置文件并合并环境变量
// 未指定路径时搜索当前目录与home下的.pagetrans.yaml，找不到时用默认值
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigName(".pagetrans")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PAGETRANS")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProviderConfig 转换为提供商基础配置
func (c *Config) ProviderConfig() providers.BaseConfig {
	return providers.BaseConfig{
		APIKey:      c.APIKey,
		APIEndpoint: c.APIEndpoint,
		Timeout:     c.Timeout,
		Model:       c.Model,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("target_language", d.TargetLanguage)
	v.SetDefault("source_language", d.SourceLanguage)
	v.SetDefault("provider", d.Provider)
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_tokens", d.MaxTokens)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("retry_attempts", d.RetryAttempts)
	v.SetDefault("auto_translate", d.AutoTranslate)
	v.SetDefault("cache_enabled", d.CacheEnabled)
	v.SetDefault("cache_path", d.CachePath)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.allowed_origins", d.Server.AllowedOrigins)
	v.SetDefault("browser.headless", d.Browser.Headless)
	v.SetDefault("browser.viewport_width", d.Browser.ViewportWidth)
	v.SetDefault("browser.viewport_height", d.Browser.ViewportHeight)
}

// validate 基础校验
func validate(c *Config) error {
	if c.TargetLanguage == "" {
		return fmt.Errorf("target_language must be set")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider must be set")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive")
	}
	return nil
}

// defaultAllowedOrigins 默认只放行本机页面与浏览器扩展
// 开发时要接任意前端可配置 server.allowed_origins: ["*"]
func defaultAllowedOrigins() []string {
	return []string{
		"http://localhost:*",
		"http://127.0.0.1:*",
		"https://localhost:*",
		"chrome-extension://*",
		"moz-extension://*",
		"safari-web-extension://*",
	}
}

func defaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pagetrans-cache.db"
	}
	return filepath.Join(home, ".pagetrans", "cache.db")
}
