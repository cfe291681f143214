package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store and directory backend selectors.
const (
	StoreMemory = "memory"
	StoreDynamo = "dynamo"

	DirectoryDynamo = "dynamo"
	DirectoryGCIP   = "gcip"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string

	OTPStore       string // "memory" | "dynamo"
	ChallengeTable string

	DirectoryBackend string // "dynamo" | "gcip"

	OTPTTL      time.Duration
	OTPCooldown time.Duration
	// EchoCode returns the generated code in the send-otp response. A
	// development helper; must stay off in any production posture.
	EchoCode bool
	// RevokeOnDeliveryFailure removes the just-issued challenge when the
	// mail send fails, allowing an immediate retry instead of waiting out
	// the cooldown.
	RevokeOnDeliveryFailure bool

	SMTPHost string
	SMTPPort string

	SNSRegion        string
	SNSAlertTopicARN string // empty disables delivery-failure alerts

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	ReceiptTTL        time.Duration

	AllowedOrigins []string // CORS allowed origins

	DefaultTenant string
	Tenants       []TenantConfig
}

// TenantConfig is the raw per-tenant environment slice, keyed by
// TENANT_<KEY>_* variables. Validation happens in the tenant registry.
type TenantConfig struct {
	Key            string
	DisplayName    string
	SMTPUsername   string
	SMTPPassword   string
	From           string
	Subject        string
	Support        string
	ThemePrimary   string
	ThemeAccent    string
	DirectoryTable string
	ServiceAccount string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	otpStore := getEnv("OTP_STORE", StoreMemory)

	// The durable store enforces a strict resend window; the in-memory
	// variant replaces freely unless a cooldown is configured explicitly.
	defaultCooldown := time.Duration(0)
	if otpStore == StoreDynamo {
		defaultCooldown = 60 * time.Second
	}

	cfg := &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),

		OTPStore:       otpStore,
		ChallengeTable: getEnv("DYNAMO_TABLE_CHALLENGES", "otp_challenges"),

		DirectoryBackend: getEnv("DIRECTORY_BACKEND", DirectoryGCIP),

		OTPTTL:                  getEnvDuration("OTP_TTL", 10*time.Minute),
		OTPCooldown:             getEnvDuration("OTP_COOLDOWN", defaultCooldown),
		EchoCode:                getEnvBool("OTP_ECHO_CODE", false),
		RevokeOnDeliveryFailure: getEnvBool("OTP_REVOKE_ON_DELIVERY_FAILURE", false),

		SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort: getEnv("SMTP_PORT", "587"),

		SNSRegion:        getEnv("SNS_REGION", "us-east-1"),
		SNSAlertTopicARN: getEnv("SNS_ALERT_TOPIC_ARN", ""),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", ""),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", ""),
		ReceiptTTL:        getEnvDuration("RECEIPT_TTL", 10*time.Minute),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}

	for _, key := range splitKeys(getEnv("TENANTS", "")) {
		cfg.Tenants = append(cfg.Tenants, loadTenant(key))
	}
	cfg.DefaultTenant = strings.ToLower(getEnv("DEFAULT_TENANT", firstKey(cfg.Tenants)))

	return cfg
}

func loadTenant(key string) TenantConfig {
	prefix := "TENANT_" + strings.ToUpper(key) + "_"
	return TenantConfig{
		Key:            strings.ToLower(key),
		DisplayName:    getEnv(prefix+"DISPLAY_NAME", key),
		SMTPUsername:   getEnv(prefix+"SMTP_USERNAME", ""),
		SMTPPassword:   getEnv(prefix+"SMTP_PASSWORD", ""),
		From:           getEnv(prefix+"FROM", ""),
		Subject:        getEnv(prefix+"SUBJECT", ""),
		Support:        getEnv(prefix+"SUPPORT", ""),
		ThemePrimary:   getEnv(prefix+"THEME_PRIMARY", ""),
		ThemeAccent:    getEnv(prefix+"THEME_ACCENT", ""),
		DirectoryTable: getEnv(prefix+"DIRECTORY_TABLE", strings.ToLower(key)+"_users"),
		ServiceAccount: getEnv(prefix+"SERVICE_ACCOUNT", ""),
	}
}

func splitKeys(csv string) []string {
	var keys []string
	for _, k := range strings.Split(csv, ",") {
		k = strings.TrimSpace(k)
		if k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func firstKey(tenants []TenantConfig) string {
	if len(tenants) == 0 {
		return ""
	}
	return tenants[0].Key
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
