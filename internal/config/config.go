package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	API    APIConfig    `mapstructure:"api"`
	Socket SocketConfig `mapstructure:"socket"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type SocketConfig struct {
	URL              string        `mapstructure:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	PingInterval     time.Duration `mapstructure:"ping_interval"`
	ReconnectWait    time.Duration `mapstructure:"reconnect_wait"`
	MaxReconnectWait time.Duration `mapstructure:"max_reconnect_wait"`
	MaxReconnects    int           `mapstructure:"max_reconnects"`
}

type ChatConfig struct {
	MessagePageLimit      int           `mapstructure:"message_page_limit"`
	ConversationPageLimit int           `mapstructure:"conversation_page_limit"`
	ConnectionPageLimit   int           `mapstructure:"connection_page_limit"`
	TypingDebounce        time.Duration `mapstructure:"typing_debounce"`
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults 填充未配置项的默认值
func (c *Config) applyDefaults() {
	if c.API.Timeout <= 0 {
		c.API.Timeout = 15 * time.Second
	}
	if c.Socket.HandshakeTimeout <= 0 {
		c.Socket.HandshakeTimeout = 10 * time.Second
	}
	if c.Socket.WriteTimeout <= 0 {
		c.Socket.WriteTimeout = 10 * time.Second
	}
	if c.Socket.PingInterval <= 0 {
		c.Socket.PingInterval = 30 * time.Second
	}
	if c.Socket.ReconnectWait <= 0 {
		c.Socket.ReconnectWait = time.Second
	}
	if c.Socket.MaxReconnectWait <= 0 {
		c.Socket.MaxReconnectWait = 30 * time.Second
	}
	if c.Chat.MessagePageLimit <= 0 {
		c.Chat.MessagePageLimit = 30
	}
	if c.Chat.ConversationPageLimit <= 0 {
		c.Chat.ConversationPageLimit = 20
	}
	if c.Chat.ConnectionPageLimit <= 0 {
		c.Chat.ConnectionPageLimit = 20
	}
	if c.Chat.TypingDebounce <= 0 {
		c.Chat.TypingDebounce = time.Second
	}
}
