package config

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/pem"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/condoprime/mono-repo/backend/shared/go-utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
)

type Config struct {
	OrganizationName      string
	AppName               string
	AppPort               string
	AppUrl                string
	IdentityDBUrl         string
	TenancyDBUrl          string
	RSAPrivateKey         *rsa.PrivateKey
	RSAPublicKey          *rsa.PublicKey
	AccessTokenTTL        time.Duration
	SendgridAPIKey        string
	SendgridFromEmail     string
	TwilioAccountSID      string
	TwilioAuthToken       string
	TwilioFromPhone       string
	PlatformAdminEmail    string
	PlatformAdminPassword string
	ReconcilerSchedule    string
	LDSDKKey              string
	MaxSignInAttempts     int
	SignInAttemptWindow   time.Duration
	SignInLockDuration    time.Duration

	LDFlag_SendgridSandboxMode          bool
	LDFlag_AsyncNotifications           bool
	LDFlag_ConsistencyReconcilerEnabled bool
	LDFlag_CORSHighSecurity             bool
	LDFlag_SeedPlatformAdmin            bool
	LDFlag_ValidatePhoneWithTwilio      bool
}

const (
	OrganizationName          = utils.OrganizationName
	LDConnectionTimeout       = 5 * time.Second
	DefaultAccessTokenTTL     = time.Hour
	DefaultReconcilerSchedule = "@every 15m"
	SignInCleanupSchedule     = "@daily"
	MaxSignInAttempts         = 10
	SignInAttemptWindow       = 5 * time.Minute
	SignInLockDuration        = 10 * time.Minute
)

// Default values, override via ldflags at build time.
var (
	AppName             = "tenancy-service"
	LDServerContextKey  = "tenancy-service"
	LDServerContextKind = "service"
)

// flagDefaults are used when LD_SDK_KEY is absent; each can be overridden
// by an env var of the same name upper-cased.
var flagDefaults = map[string]bool{
	"sendgrid_sandbox_mode":          false,
	"async_notifications":            true,
	"consistency_reconciler_enabled": false,
	"cors_high_security":             true,
	"seed_platform_admin":            false,
	"validate_phone_with_twilio":     false,
}

func LoadConfig() *Config {
	//----------------------------------------------------------------------
	// Optional .env file
	//----------------------------------------------------------------------
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		utils.Logger.Debugf("No env file loaded from %s: %v", envFile, err)
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	//----------------------------------------------------------------------
	// Required environment variables
	//----------------------------------------------------------------------
	appPort := mustEnv("APP_PORT")
	appUrl := mustEnv("APP_URL")
	identityDBUrl := mustEnv("IDENTITY_DB_URL")
	tenancyDBUrl := mustEnv("TENANCY_DB_URL")

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(decodePEM("RSA_PRIVATE_KEY_BASE64"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA private key")
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(decodePEM("RSA_PUBLIC_KEY_BASE64"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to parse RSA public key")
	}

	utils.Logger.Debugf("App can be accessed at: %s", appUrl)

	//----------------------------------------------------------------------
	// Optional values
	//----------------------------------------------------------------------
	ttl := DefaultAccessTokenTTL
	if raw := os.Getenv("ACCESS_TOKEN_TTL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			utils.Logger.WithError(err).Fatalf("Invalid ACCESS_TOKEN_TTL %q", raw)
		}
		ttl = parsed
	}
	schedule := os.Getenv("RECONCILER_SCHEDULE")
	if schedule == "" {
		schedule = DefaultReconcilerSchedule
	}

	cfg := &Config{
		OrganizationName:      OrganizationName,
		AppName:               AppName,
		AppPort:               appPort,
		AppUrl:                appUrl,
		IdentityDBUrl:         identityDBUrl,
		TenancyDBUrl:          tenancyDBUrl,
		RSAPrivateKey:         privateKey,
		RSAPublicKey:          publicKey,
		AccessTokenTTL:        ttl,
		SendgridAPIKey:        os.Getenv("SENDGRID_API_KEY"),
		SendgridFromEmail:     os.Getenv("SENDGRID_FROM_EMAIL"),
		TwilioAccountSID:      os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:       os.Getenv("TWILIO_FROM_PHONE"),
		PlatformAdminEmail:    os.Getenv("PLATFORM_ADMIN_EMAIL"),
		PlatformAdminPassword: os.Getenv("PLATFORM_ADMIN_PASSWORD"),
		ReconcilerSchedule:    schedule,
		LDSDKKey:              os.Getenv("LD_SDK_KEY"),
		MaxSignInAttempts:     MaxSignInAttempts,
		SignInAttemptWindow:   SignInAttemptWindow,
		SignInLockDuration:    SignInLockDuration,
	}

	flags := loadFlags(cfg.LDSDKKey)
	cfg.LDFlag_SendgridSandboxMode = flags["sendgrid_sandbox_mode"]
	cfg.LDFlag_AsyncNotifications = flags["async_notifications"]
	cfg.LDFlag_ConsistencyReconcilerEnabled = flags["consistency_reconciler_enabled"]
	cfg.LDFlag_CORSHighSecurity = flags["cors_high_security"]
	cfg.LDFlag_SeedPlatformAdmin = flags["seed_platform_admin"]
	cfg.LDFlag_ValidatePhoneWithTwilio = flags["validate_phone_with_twilio"]

	if cfg.LDFlag_SeedPlatformAdmin && (cfg.PlatformAdminEmail == "" || cfg.PlatformAdminPassword == "") {
		utils.Logger.Fatal("seed_platform_admin requires PLATFORM_ADMIN_EMAIL and PLATFORM_ADMIN_PASSWORD")
	}
	if cfg.SendgridAPIKey != "" && cfg.SendgridFromEmail == "" {
		utils.Logger.Fatal("SENDGRID_FROM_EMAIL is required when SENDGRID_API_KEY is set")
	}
	return cfg
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		utils.Logger.Fatalf("%s env var is missing", key)
	}
	return v
}

func decodePEM(key string) []byte {
	raw, err := base64.StdEncoding.DecodeString(mustEnv(key))
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Failed to decode base64 %s", key)
	}
	if block, _ := pem.Decode(raw); block == nil {
		utils.Logger.Fatalf("Failed to decode PEM block for %s", key)
	}
	return raw
}

// loadFlags resolves every known flag, through LaunchDarkly when a key is
// configured and from env fallbacks otherwise.
func loadFlags(sdkKey string) map[string]bool {
	out := make(map[string]bool, len(flagDefaults))
	for name, def := range flagDefaults {
		out[name] = envBool(strings.ToUpper(name), def)
	}
	if sdkKey == "" {
		utils.Logger.Info("LD_SDK_KEY not set; feature flags come from env defaults")
		return out
	}

	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)
	for name, fallback := range out {
		val, err := ldClient.BoolVariation(name, context, fallback)
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Error retrieving %s flag", name)
		}
		utils.Logger.Debugf("%s flag: %t", name, val)
		out[name] = val
	}
	return out
}

func envBool(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		utils.Logger.Warnf("Invalid boolean %s=%q, using %t", key, raw, def)
		return def
	}
	return v
}
