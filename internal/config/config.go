package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/tokmz/wxgate/internal/wechat"
)

// Config 应用配置
type Config struct {
	Server  Server  `mapstructure:"server"`
	Wx      Wx      `mapstructure:"wx"`
	Storage Storage `mapstructure:"storage"`
	Cache   Cache   `mapstructure:"cache"`
	Log     Log     `mapstructure:"log"`
}

// Server HTTP 服务配置
type Server struct {
	Addr            string        `mapstructure:"addr"`
	Mode            string        `mapstructure:"mode"` // debug/release/test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Wx 公众平台配置
type Wx struct {
	AppID          string `mapstructure:"app_id"`
	AppSecret      string `mapstructure:"app_secret"`
	Token          string `mapstructure:"token"`
	EncodingAESKey string `mapstructure:"encoding_aes_key"`
	// AuthRedirectURL 回复消息里的授权链接
	AuthRedirectURL string        `mapstructure:"auth_redirect_url"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`

	// aesKey 为 EncodingAESKey 解析结果，加载时填充
	aesKey wechat.EncodingAESKey
}

// AESKey 返回解析后的消息加解密密钥
func (w Wx) AESKey() wechat.EncodingAESKey { return w.aesKey }

// Storage 数据库配置
type Storage struct {
	DSN          string `mapstructure:"dsn"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// Cache 缓存配置
type Cache struct {
	Driver    string `mapstructure:"driver"` // redis/memory
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Log 日志配置
type Log struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"` // json/console
	Console  bool   `mapstructure:"console"`
	File     string `mapstructure:"file"`
	MaxSize  int    `mapstructure:"max_size"`
	MaxAge   int    `mapstructure:"max_age"`
	Compress bool   `mapstructure:"compress"`
}

// Load 加载配置文件并应用环境变量覆盖（前缀 WXGATE）
// EncodingAESKey 在此解析，非法配置直接失败
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetEnvPrefix("WXGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("wx.timeout", "10s")
	v.SetDefault("wx.auth_redirect_url", "https://mp.weixin.qq.com/")
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.console", true)
}

func (c *Config) validate() error {
	if c.Wx.AppID == "" {
		return fmt.Errorf("config: wx.app_id is required")
	}
	if c.Wx.AppSecret == "" {
		return fmt.Errorf("config: wx.app_secret is required")
	}
	if c.Wx.Token == "" {
		return fmt.Errorf("config: wx.token is required")
	}

	key, err := wechat.ParseEncodingAESKey(c.Wx.EncodingAESKey)
	if err != nil {
		return fmt.Errorf("config: wx.encoding_aes_key: %w", err)
	}
	c.Wx.aesKey = key

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("config: cache.driver must be memory or redis")
	}
	if c.Cache.Driver == "redis" && c.Cache.Addr == "" {
		return fmt.Errorf("config: cache.addr is required for redis driver")
	}
	return nil
}
