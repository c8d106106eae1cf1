package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the service configuration, read from the environment.
type Config struct {
	MongoURI     string
	MongoDB      string
	Port         string
	PublicAPIKey string
	JWTSecret    string
	CORSOrigin   string
	SecureCookie bool
	LogLevel     log.Level

	// TrustedProxies may set X-Forwarded-For and X-Real-IP.
	TrustedProxies []netip.Prefix

	Feedback FeedbackConfig
	MQTT     MQTTConfig
}

// FeedbackConfig selects how suggestions are emailed. Resend wins when both
// Resend and SMTP are configured.
type FeedbackConfig struct {
	ResendAPIKey string
	To           string
	From         string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPTLS      bool
}

// Enabled reports whether any mail transport is configured.
func (f FeedbackConfig) Enabled() bool {
	return f.ResendAPIKey != "" || f.SMTPHost != ""
}

// MQTTConfig enables the change feed bridge when BrokerURL is set.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Topic     string
	Username  string
	Password  string
}

// Load reads an optional .env file and then the environment. Missing
// required variables are reported together.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		MongoURI:     os.Getenv("MONGO_URI"),
		MongoDB:      getenv("MONGO_DB", "worx_notes"),
		Port:         getenv("PORT", "8080"),
		PublicAPIKey: os.Getenv("PUBLIC_API_KEY"),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		CORSOrigin:   getenv("CORS_ORIGIN", "*"),
		SecureCookie: getbool("SECURE_COOKIES", false),
		Feedback: FeedbackConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			To:           getenv("FEEDBACK_TO", "doug@d3x.com"),
			From:         getenv("FEEDBACK_FROM", "Worx Notes <noreply@resend.dev>"),
			SMTPHost:     os.Getenv("SMTP_HOST"),
			SMTPPort:     getint("SMTP_PORT", 587),
			SMTPUsername: os.Getenv("SMTP_USERNAME"),
			SMTPPassword: os.Getenv("SMTP_PASSWORD"),
			SMTPTLS:      getbool("SMTP_TLS", false),
		},
		MQTT: MQTTConfig{
			BrokerURL: os.Getenv("MQTT_BROKER_URL"),
			ClientID:  getenv("MQTT_CLIENT_ID", "worx-notes"),
			Topic:     getenv("MQTT_TOPIC", "worx-notes/repairs"),
			Username:  os.Getenv("MQTT_USERNAME"),
			Password:  os.Getenv("MQTT_PASSWORD"),
		},
	}

	level, err := log.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	proxies, err := parsePrefixes(os.Getenv("TRUSTED_PROXIES"))
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	cfg.TrustedProxies = proxies

	var missing []string
	for name, value := range map[string]string{
		"MONGO_URI":      cfg.MongoURI,
		"PUBLIC_API_KEY": cfg.PublicAPIKey,
		"JWT_SECRET":     cfg.JWTSecret,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithField("key", key).Warnf("Ignoring non-numeric value %q", v)
		return fallback
	}
	return n
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// parsePrefixes reads a comma-separated list of CIDRs or single addresses.
func parsePrefixes(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.Contains(item, "/") {
			p, err := netip.ParsePrefix(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(item)
		if err != nil {
			return nil, err
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}
