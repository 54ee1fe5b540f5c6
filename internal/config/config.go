package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/squareft/sms-gateway/pkg/logger"
)

var config *Config

// Config holds every env-backed setting used by the service. Only this
// struct may be used to read configuration; no direct os.Getenv access
// elsewhere.
//
// The Twilio credentials deliberately default to placeholder strings: the
// service boots without them and surfaces provider-side auth errors at
// send time instead of failing fast.
type Config struct {
	AppEnv              string `env:"APP_ENV" default:"dev"`
	AppName             string `env:"APP_NAME" default:"squareft_sms_gateway"`
	AppDebug            bool   `env:"APP_DEBUG" default:"1"`
	AppDebugMetricsAddr string `env:"APP_DEBUG_METRIC_ADDR"`
	AppDebugMetricsURI  string `env:"APP_DEBUG_METRIC_URI"`

	HttpListenAddr         string `env:"HTTP_LISTEN_ADDR" default:":8080"`
	HttpServerReadTimeout  int    `env:"HTTP_SERVER_READ_TIMEOUT"`
	HttpServerWriteTimeout int    `env:"HTTP_SERVER_WRITE_TIMEOUT"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID" default:"your_account_sid_here"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN" default:"your_auth_token_here"`
	TwilioFromNumber string `env:"TWILIO_PHONE_NUMBER" default:"your_twilio_phone_number_here"`
	TwilioBaseURL    string `env:"TWILIO_BASE_URL" default:"https://api.twilio.com"`
	TwilioTimeout    int    `env:"TWILIO_TIMEOUT_MS" default:"10000"`

	DefaultCountryCode string `env:"SMS_DEFAULT_COUNTRY_CODE" default:"+1"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX"`

	PromNamespace string `env:"PROM_NAMESPACE" default:"squareft"`

	SessionTTL      time.Duration `env:"SESSION_TTL" default:"168h"`
	BadgeInterval   time.Duration `env:"BADGE_REFRESH_INTERVAL" default:"5m"`
	DashboardPath   string        `env:"DASHBOARD_PATH" default:"/dashboard"`
	LegacyPrefixes  []string      `env:"LEGACY_PATH_PREFIXES" default:"/app,/portal,/landlord,/property-dashboard"`
	ProtectedPrefix string        `env:"PROTECTED_PATH_PREFIX" default:"/dashboard"`

	QueueName              string        `env:"QUEUE_NAME" default:"sms:status-refresh"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP" default:"refresher"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES" default:"5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT" default:"30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" default:"1s"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE" default:"10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN" default:"100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ" default:"1"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	var err error
	if path != "" {
		logger.Info("trying to publish env from file", "path", path)
		err = godotenv.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load configuration file "+path)
		}
	}

	_, err = env.UnmarshalFromEnviron(c)
	if err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	config = c
	return nil
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}
