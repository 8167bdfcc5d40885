package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	FeatureFlags FeatureFlagsConfig
	Uploads      UploadsConfig
	Mailer       MailerConfig
	Accounting   AccountingConfig
	Queue        QueueConfig
	Backup       BackupConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CORALDESK_APP_ENV" required:"true"`
	Port         string `envconfig:"CORALDESK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CORALDESK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CORALDESK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CORALDESK_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"CORALDESK_DB_DSN"`
	Driver string `envconfig:"CORALDESK_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"CORALDESK_DB_HOST"`
	Port     int    `envconfig:"CORALDESK_DB_PORT" default:"5432"`
	User     string `envconfig:"CORALDESK_DB_USER"`
	Password string `envconfig:"CORALDESK_DB_PASSWORD"`
	Name     string `envconfig:"CORALDESK_DB_NAME"`
	SSLMode  string `envconfig:"CORALDESK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CORALDESK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CORALDESK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CORALDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CORALDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CORALDESK_REDIS_URL" required:"true"`
	Password     string        `envconfig:"CORALDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CORALDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CORALDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CORALDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CORALDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CORALDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CORALDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CORALDESK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CORALDESK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CORALDESK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// Expiration returns the configured access token lifetime.
func (j JWTConfig) Expiration() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"CORALDESK_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"CORALDESK_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"CORALDESK_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"CORALDESK_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"CORALDESK_ARGON_KEY_LEN" default:"32"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"CORALDESK_AUTO_MIGRATE" default:"false"`
}

type UploadsConfig struct {
	BaseDir     string `envconfig:"CORALDESK_UPLOADS_DIR" default:"./uploads"`
	MaxUploadMB int    `envconfig:"CORALDESK_MAX_UPLOAD_MB" default:"20"`
}

type MailerConfig struct {
	EmailEndpoint    string        `envconfig:"CORALDESK_MAILER_EMAIL_ENDPOINT"`
	WhatsAppEndpoint string        `envconfig:"CORALDESK_MAILER_WHATSAPP_ENDPOINT"`
	APIKey           string        `envconfig:"CORALDESK_MAILER_API_KEY"`
	FromAddress      string        `envconfig:"CORALDESK_MAILER_FROM_ADDRESS" default:"noreply@coraldesk.local"`
	StaffAddress     string        `envconfig:"CORALDESK_MAILER_STAFF_ADDRESS" default:"staff@coraldesk.local"`
	SendTimeout      time.Duration `envconfig:"CORALDESK_MAILER_SEND_TIMEOUT" default:"15s"`
}

type AccountingConfig struct {
	ClientID     string `envconfig:"CORALDESK_ACCOUNTING_CLIENT_ID"`
	ClientSecret string `envconfig:"CORALDESK_ACCOUNTING_CLIENT_SECRET"`
	AuthURL      string `envconfig:"CORALDESK_ACCOUNTING_AUTH_URL" default:"https://login.xero.com/identity/connect/authorize"`
	TokenURL     string `envconfig:"CORALDESK_ACCOUNTING_TOKEN_URL" default:"https://identity.xero.com/connect/token"`
	APIBaseURL   string `envconfig:"CORALDESK_ACCOUNTING_API_BASE_URL" default:"https://api.xero.com/api.xro/2.0"`
	RedirectURL  string `envconfig:"CORALDESK_ACCOUNTING_REDIRECT_URL"`
}

type QueueConfig struct {
	PollInterval       time.Duration `envconfig:"CORALDESK_QUEUE_POLL_INTERVAL" default:"60s"`
	BatchWindowSeconds int           `envconfig:"CORALDESK_QUEUE_BATCH_WINDOW_SECONDS" default:"300"`
	MaxAttempts        int           `envconfig:"CORALDESK_QUEUE_MAX_ATTEMPTS" default:"3"`
	RetentionDays      int           `envconfig:"CORALDESK_QUEUE_RETENTION_DAYS" default:"30"`
}

type BackupConfig struct {
	Schedule      string `envconfig:"CORALDESK_BACKUP_SCHEDULE" default:"0 3 * * *"`
	Dir           string `envconfig:"CORALDESK_BACKUP_DIR" default:"./backups"`
	RetentionDays int    `envconfig:"CORALDESK_BACKUP_RETENTION_DAYS" default:"14"`
	PgDumpPath    string `envconfig:"CORALDESK_BACKUP_PG_DUMP_PATH" default:"pg_dump"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
