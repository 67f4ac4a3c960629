package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	SMTP     SMTPConfig
	Feed     FeedConfig
	Alerter  AlerterConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (d DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type CORSConfig struct {
	AllowedOrigins string
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type FeedConfig struct {
	PollIntervalSec int
	FetchTimeoutSec int
	MQTTURL         string
	MQTTTopic       string
}

type AlerterConfig struct {
	CronSpec        string
	LookbackMin     int
	SendTimeoutSec  int
	SendRatePerSec  int
	GlobalPartnerID int
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}
	smtpPort, err := getIntEnv("SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	pollInterval, err := getIntEnv("FEED_POLL_INTERVAL_SEC", 120)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_POLL_INTERVAL_SEC: %w", err)
	}
	fetchTimeout, err := getIntEnv("FEED_FETCH_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid FEED_FETCH_TIMEOUT_SEC: %w", err)
	}
	lookback, err := getIntEnv("ALERT_LOOKBACK_MIN", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_LOOKBACK_MIN: %w", err)
	}
	sendTimeout, err := getIntEnv("ALERT_SEND_TIMEOUT_SEC", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_SEND_TIMEOUT_SEC: %w", err)
	}
	sendRate, err := getIntEnv("ALERT_SEND_RATE_PER_SEC", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERT_SEND_RATE_PER_SEC: %w", err)
	}
	globalPartner, err := getIntEnv("GLOBAL_PARTNER_ID", 99)
	if err != nil {
		return nil, fmt.Errorf("invalid GLOBAL_PARTNER_ID: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: serverPort,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "wazebr"),
			Password: getEnv("DB_PASSWORD", "wazebr_dev_password"),
			Name:     getEnv("DB_NAME", "wazebr"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
			ExpiryHours: jwtExpiry,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     smtpPort,
			User:     getEnv("SMTP_USER", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "alerts@wazebr.local"),
		},
		Feed: FeedConfig{
			PollIntervalSec: pollInterval,
			FetchTimeoutSec: fetchTimeout,
			MQTTURL:         getEnv("MQTT_URL", ""),
			MQTTTopic:       getEnv("MQTT_TOPIC", "wazebr/feed/+"),
		},
		Alerter: AlerterConfig{
			CronSpec:        getEnv("ALERT_CRON_SPEC", "@every 1m"),
			LookbackMin:     lookback,
			SendTimeoutSec:  sendTimeout,
			SendRatePerSec:  sendRate,
			GlobalPartnerID: globalPartner,
		},
	}

	return cfg, nil
}

// SplitOrigins returns the configured CORS origins as a list.
func (c CORSConfig) SplitOrigins() []string {
	return strings.Split(c.AllowedOrigins, ",")
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}
