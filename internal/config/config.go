package config

import "time"

// Broadcast backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	// MaxMessageBytes caps a single inbound websocket frame.
	MaxMessageBytes int64 `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	// MaxMessagesPerMinute limits inbound payloads per connection; 0 disables the limit.
	MaxMessagesPerMinute int `mapstructure:"max_messages_per_minute" yaml:"max_messages_per_minute"`
	// AutoCreateRooms lets a websocket join create a missing room.
	AutoCreateRooms bool `mapstructure:"auto_create_rooms" yaml:"auto_create_rooms"`
	// CodecMinLength is the rune count below which chat text is sent uncompressed.
	CodecMinLength int `mapstructure:"codec_min_length" yaml:"codec_min_length"`

	Broadcast BroadcastConfig `mapstructure:"broadcast" yaml:"broadcast"`
}

// BroadcastConfig selects how room events reach subscribers.
type BroadcastConfig struct {
	Backend       string `mapstructure:"backend" yaml:"backend"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:                 ":8080",
		ReadHeaderTimeout:    5 * time.Second,
		ShutdownTimeout:      5 * time.Second,
		LogLevel:             "info",
		LogFormat:            "console",
		DatabasePath:         "roomchat.db",
		JWTSecret:            "change-me",
		JWTIssuer:            "roomchat",
		JWTAudience:          "roomchat",
		JWTTTL:               24 * time.Hour,
		MaxMessageBytes:      1 << 16,
		MaxMessagesPerMinute: 0,
		AutoCreateRooms:      false,
		CodecMinLength:       0,
		Broadcast: BroadcastConfig{
			Backend:       BackendMemory,
			RedisAddr:     "localhost:6379",
			ChannelPrefix: "roomchat:room:",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
}
