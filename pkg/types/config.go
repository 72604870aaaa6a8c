package types

import "time"

type Config struct {
	Environment     string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort      uint   `envconfig:"SERVER_PORT" default:"5002"`
	ReadTimeoutSec  uint   `envconfig:"READ_TIMEOUT_SEC" default:"10"`
	WriteTimeoutSec uint   `envconfig:"WRITE_TIMEOUT_SEC" default:"15"`

	// Primary database. All of host, user, password and name are required
	// before the primary is even attempted.
	DBHost     string `envconfig:"DB_HOST"`
	DBPort     uint16 `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME"`
	DBSchema   string `envconfig:"DB_SCHEMA" default:"vanads"`
	DBPoolSize int32  `envconfig:"DB_POOL_SIZE" default:"5"`

	ConnectTimeout    time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"10s"`
	ReconnectInterval time.Duration `envconfig:"DB_RECONNECT_INTERVAL" default:"5m"`

	// Local fallback database used while the primary is unreachable
	FallbackPath string `envconfig:"FALLBACK_PATH" default:"fallback.db"`

	// Photo uploads. When StorageBucket is set photos go to S3, otherwise
	// they are written below UploadRoot.
	UploadRoot     string `envconfig:"UPLOAD_ROOT" default:"."`
	StorageBucket  string `envconfig:"STORAGE_BUCKET"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"16777216"` // 16MB

	// Back-office auth, disabled when empty
	AuthIssuerURL string `envconfig:"AUTH_ISSUER_URL"`
}
