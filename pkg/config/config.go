package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port string `mapstructure:"port"`
	// Store mongo | memory
	Store string `mapstructure:"store"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	RabbitMQ   RabbitMQConfig `mapstructure:"rabbitmq"`
	JWT        JWTConfig      `mapstructure:"jwt"`
	Session    SessionConfig  `mapstructure:"session"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
	// Addr single node, empty 時用 sentinel (.env)
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RabbitMQConfig chat event publisher setting, empty URL disables publishing
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// JWTConfig token verify setting
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
}

// SessionConfig websocket session tuning
type SessionConfig struct {
	SendBuffer      int           `mapstructure:"send_buffer"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	HandlerTimeout  time.Duration `mapstructure:"handler_timeout"`
	EditWindow      time.Duration `mapstructure:"edit_window"`
	EventsPerSecond float64       `mapstructure:"events_per_second"`
	EventBurst      int           `mapstructure:"event_burst"`
}

// WithDefaults fill zero values
func (s SessionConfig) WithDefaults() SessionConfig {
	if s.SendBuffer <= 0 {
		s.SendBuffer = 256
	}
	if s.PingInterval <= 0 {
		s.PingInterval = 30 * time.Second
	}
	if s.HandlerTimeout <= 0 {
		s.HandlerTimeout = 5 * time.Second
	}
	if s.EditWindow <= 0 {
		s.EditWindow = 390 * time.Second
	}
	if s.EventsPerSecond <= 0 {
		s.EventsPerSecond = 20
	}
	if s.EventBurst <= 0 {
		s.EventBurst = 40
	}
	return s
}
