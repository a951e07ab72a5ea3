package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type DBConfig struct {
	Host, User, Password, DBName, SSLMode string
	Port                                  int
}

// NotifyConfig tunes the fan-out side: push-stream heartbeats and
// outbound webhook delivery.
type NotifyConfig struct {
	HeartbeatInterval time.Duration
	WebhookTimeout    time.Duration
	WebhookMaxRetries int
	WebhookBackoff    time.Duration
	WebhookBodyLimit  int
}

type Config struct {
	SMTPHost, WebHost, Domain, APIToken, CertFile, KeyFile string
	SMTPPort, WebPort                                      int
	MaxMessageBytes                                        int64

	// AuthBypass skips the SPF/DKIM/DMARC gate entirely (test mode).
	// RejectSPFFail escalates an SPF hard-fail from logged-only to a
	// rejection; signature and alignment failures always reject.
	AuthBypass    bool
	RejectSPFFail bool

	DB     DBConfig
	Notify NotifyConfig
}

func Load() (Config, error) {

	viper.SetDefault("smtp.host", "0.0.0.0")
	viper.SetDefault("smtp.port", 25)
	viper.SetDefault("smtp.max_message_mb", 25)
	viper.SetDefault("web.host", "0.0.0.0")
	viper.SetDefault("web.port", 8080)
	viper.SetDefault("domain", "example.com")
	viper.SetDefault("db.sslmode", "disable")
	viper.SetDefault("auth.bypass", false)
	viper.SetDefault("auth.reject_spf_fail", false)
	viper.SetDefault("notify.heartbeat_interval", "30s")
	viper.SetDefault("notify.webhook_timeout", "5s")
	viper.SetDefault("notify.webhook_max_retries", 3)
	viper.SetDefault("notify.webhook_backoff", "1s")
	viper.SetDefault("notify.webhook_body_limit", 100)

	_ = viper.ReadInConfig() // ignore missing config file

	c := Config{
		SMTPHost:        viper.GetString("smtp.host"),
		SMTPPort:        viper.GetInt("smtp.port"),
		MaxMessageBytes: viper.GetInt64("smtp.max_message_mb") << 20,
		WebHost:         viper.GetString("web.host"),
		WebPort:         viper.GetInt("web.port"),
		Domain:          viper.GetString("domain"),
		APIToken:        viper.GetString("api.token"),
		CertFile:        viper.GetString("tls.cert_file"),
		KeyFile:         viper.GetString("tls.key_file"),
		AuthBypass:      viper.GetBool("auth.bypass"),
		RejectSPFFail:   viper.GetBool("auth.reject_spf_fail"),
		DB: DBConfig{
			Host:     viper.GetString("db.host"),
			Port:     viper.GetInt("db.port"),
			User:     viper.GetString("db.user"),
			Password: viper.GetString("db.password"),
			DBName:   viper.GetString("db.name"),
			SSLMode:  viper.GetString("db.sslmode"),
		},
		Notify: NotifyConfig{
			HeartbeatInterval: viper.GetDuration("notify.heartbeat_interval"),
			WebhookTimeout:    viper.GetDuration("notify.webhook_timeout"),
			WebhookMaxRetries: viper.GetInt("notify.webhook_max_retries"),
			WebhookBackoff:    viper.GetDuration("notify.webhook_backoff"),
			WebhookBodyLimit:  viper.GetInt("notify.webhook_body_limit"),
		},
	}

	// ---- OVERRIDE WITH ENV VARS (STRICT) ----
	if v := os.Getenv("MAILFEED_DB_HOST"); v != "" {
		c.DB.Host = v
	}
	if v := os.Getenv("MAILFEED_DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.DB.Port)
	}
	if v := os.Getenv("MAILFEED_DB_USER"); v != "" {
		c.DB.User = v
	}
	if v := os.Getenv("MAILFEED_DB_PASSWORD"); v != "" {
		c.DB.Password = v
	}
	if v := os.Getenv("MAILFEED_DB_NAME"); v != "" {
		c.DB.DBName = v
	}
	if v := os.Getenv("MAILFEED_DOMAIN"); v != "" {
		c.Domain = v
	}
	if v := os.Getenv("MAILFEED_API_TOKEN"); v != "" {
		c.APIToken = v
	}
	if v := os.Getenv("MAILFEED_AUTH_BYPASS"); v != "" {
		c.AuthBypass, _ = strconv.ParseBool(v)
	}

	if c.APIToken == "" {
		return Config{}, fmt.Errorf("api.token must be configured")
	}

	return c, nil
}
