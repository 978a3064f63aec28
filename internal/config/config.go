package config

import "time"

type Config struct {
	Service  *ServiceConfig
	Redis    *RedisConfig
	Postgres *PostgresConfig
	Auth     *AuthConfig
	Realtime *RealtimeConfig
	Tracer   *TracerConfig
	Logger   *LoggerConfig
}

type ServiceConfig struct {
	Name            string
	Env             string
	Addr            string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	URL          string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
	PingTimeout  time.Duration
}

type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	AutoMigrate     bool
}

type AuthConfig struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
	// Login attempts per second and burst, per client IP.
	LoginRate  float64
	LoginBurst int
}

// RealtimeConfig tunes the websocket notification channel.
type RealtimeConfig struct {
	// AuthTimeout closes connections that never send the auth message. Zero disables it.
	AuthTimeout       time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
	HeartbeatInterval time.Duration
	MessageRate       float64
	MessageBurst      int
	// NotifyWithoutTx is "fire" or "suppress".
	NotifyWithoutTx string
}

type TracerConfig struct {
	Address string
}

type LoggerConfig struct {
	Level  string
	Format string
}
