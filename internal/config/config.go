package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort            string        `env:"HTTP_PORT" envDefault:"8080"`
	StaticDir           string        `env:"STATIC_DIR"`
	CORSAllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	WSPingInterval      time.Duration `env:"WS_PING_INTERVAL" envDefault:"10s"`
	WSPingTimeout       time.Duration `env:"WS_PING_TIMEOUT" envDefault:"5s"`
	WSWriteTimeout      time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	WSSendBuffer        int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	WSMaxMessageBytes   int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"1048576"`
	MaxMessageLength    int           `env:"MAX_MESSAGE_LENGTH" envDefault:"4096"`
	FriendsResetOnLogin bool          `env:"FRIENDS_RESET_ON_LOGIN" envDefault:"false"`
	CallStrictOrder     bool          `env:"CALL_STRICT_ORDER" envDefault:"false"`
	RateLimitWindow     time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"10s"`
	RateLimitMax        int           `env:"RATE_LIMIT_MAX" envDefault:"30"`
	RedisAddr           string        `env:"REDIS_ADDR"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	RedisDB             int           `env:"REDIS_DB" envDefault:"0"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
