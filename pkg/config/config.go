package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	MySQLDSN  string `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/freshmart?parseTime=true"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// Order validation bounds. The quantity cap guards against absurd
	// requests; the total cap bounds a single order's value.
	MaxItemQuantity int    `envconfig:"MAX_ITEM_QUANTITY" default:"1000"`
	MaxOrderTotal   string `envconfig:"MAX_ORDER_TOTAL" default:"10000000"`

	DispatchWorkers int           `envconfig:"DISPATCH_WORKERS" default:"8"`
	StatsCacheTTL   time.Duration `envconfig:"STATS_CACHE_TTL" default:"30s"`

	FCMEndpoint  string `envconfig:"FCM_ENDPOINT" default:"https://fcm.googleapis.com/fcm/send"`
	FCMServerKey string `envconfig:"FCM_SERVER_KEY" default:""`
	PushMockMode bool   `envconfig:"PUSH_MOCK_MODE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
