package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config for the kiosk sync daemon.
type Config struct {
	Database struct {
		Path string
		// Destructive allows dropping and recreating the store instead of
		// migrating. Non-production builds only.
		Destructive bool
	}

	MQTT struct {
		Broker      string
		ClientID    string
		Username    string
		Password    string
		QoS         byte
		TopicPrefix string
	}

	API struct {
		BaseURL string
		// BearerToken is the pre-provisioned credential; token acquisition
		// and refresh are otherwise an external collaborator's job.
		BearerToken string
		Timeout     time.Duration
		RetryCount  int
		// TokenWait is how long an authenticated call waits for a valid
		// bearer token before failing with a credential error.
		TokenWait time.Duration
	}

	Device struct {
		ExhibitionID string
		DeviceID     string
		RoomID       string
	}

	Sync struct {
		ResyncInterval      time.Duration
		SessionPollInterval time.Duration
	}

	Outbox struct {
		DrainInterval time.Duration
	}

	Session struct {
		SweepInterval time.Duration
		TagTTL        time.Duration
	}

	Metrics struct {
		Addr string
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load reads configuration from the environment, with optional .env
// bootstrap for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.Database.Path = getEnv("DB_PATH", "kiosk-sync.db")
	cfg.Database.Destructive = getEnvBool("DB_DESTRUCTIVE_MIGRATIONS", false)

	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "kiosk-sync")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.QoS = byte(getEnvInt("MQTT_QOS", 1))
	cfg.MQTT.TopicPrefix = getEnv("MQTT_TOPIC_PREFIX", "exhibition")

	cfg.API.BaseURL = getEnv("API_BASE_URL", "http://localhost:8080/v1")
	cfg.API.BearerToken = getEnv("API_BEARER_TOKEN", "")
	cfg.API.Timeout = time.Duration(getEnvInt("API_TIMEOUT_SEC", 30)) * time.Second
	cfg.API.RetryCount = getEnvInt("API_RETRY_COUNT", 2)
	cfg.API.TokenWait = time.Duration(getEnvInt("API_TOKEN_WAIT_SEC", 300)) * time.Second

	cfg.Device.ExhibitionID = getEnv("EXHIBITION_ID", "")
	cfg.Device.DeviceID = getEnv("EXHIBITION_DEVICE_ID", "")
	cfg.Device.RoomID = getEnv("EXHIBITION_ROOM_ID", "")

	cfg.Sync.ResyncInterval = time.Duration(getEnvInt("RESYNC_INTERVAL_SEC", 300)) * time.Second
	cfg.Sync.SessionPollInterval = time.Duration(getEnvInt("SESSION_POLL_INTERVAL_SEC", 60)) * time.Second

	cfg.Outbox.DrainInterval = time.Duration(getEnvInt("OUTBOX_DRAIN_INTERVAL_SEC", 2)) * time.Second

	cfg.Session.SweepInterval = time.Duration(getEnvInt("SESSION_SWEEP_INTERVAL_SEC", 60)) * time.Second
	cfg.Session.TagTTL = time.Duration(getEnvInt("TAG_TTL_MS", 5000)) * time.Millisecond

	cfg.Metrics.Addr = getEnv("METRICS_ADDR", ":9090")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Outbox.DrainInterval <= 0 {
		return fmt.Errorf("outbox drain interval must be positive")
	}
	if c.Session.TagTTL <= 0 {
		return fmt.Errorf("tag TTL must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
