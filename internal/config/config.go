package config

import (
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Remote    RemoteConfig
	Database  DatabaseConfig
	Firestore FirestoreConfig
	Local     LocalConfig
	Redis     RedisConfig
	Sync      SyncConfig
	Billing   BillingConfig
	Owner     OwnerConfig
	JWT       JWTConfig
	CORS      CORSConfig
	RateLimit RateLimitConfig
	Printer   PrinterConfig
	Log       LogConfig
}

type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Debug    bool
	Timezone string
}

// RemoteConfig selects the store bills are reconciled into
type RemoteConfig struct {
	Driver       string // postgres, firestore or memory
	PollInterval time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	Timezone string
}

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	Collection      string
}

// LocalConfig selects the device-local key-value store
type LocalConfig struct {
	Driver     string // sqlite, redis or memory
	SQLitePath string
	QueueKey   string
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Channel  string
}

// Enabled reports whether a redis address was configured
func (c *RedisConfig) Enabled() bool {
	return c.Address != ""
}

type SyncConfig struct {
	ProbeInterval     time.Duration
	HeartbeatInterval time.Duration
	WriteTimeout      time.Duration
	LockTTL           time.Duration
}

type BillingConfig struct {
	TaxRate     decimal.Decimal
	PhoneRegion string
	DeviceID    string
	StoreName   string
	StoreAddr   string
	StorePhone  string
	GSTIN       string
}

// OwnerConfig seeds the auth setup record on first run
type OwnerConfig struct {
	Email    string
	Password string
	StaffPIN string
}

type JWTConfig struct {
	Secret      string
	ExpiryHours time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type RateLimitConfig struct {
	Requests int
	Duration int
}

type PrinterConfig struct {
	Type    string
	USBPath string
	Address string
	Width   int
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() *Config {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	// Missing .env is fine; environment variables and defaults apply.
	_ = viper.ReadInConfig()

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "device-1"
	}

	// Set defaults
	viper.SetDefault("APP_NAME", "smartbill")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("APP_DEBUG", true)
	viper.SetDefault("APP_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("REMOTE_DRIVER", "memory")
	viper.SetDefault("REMOTE_POLL_INTERVAL", "5s")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_NAME", "smartbill")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_SSL_MODE", "disable")
	viper.SetDefault("DB_TIMEZONE", "Asia/Kolkata")
	viper.SetDefault("FIRESTORE_COLLECTION", "bills")
	viper.SetDefault("LOCAL_DRIVER", "sqlite")
	viper.SetDefault("LOCAL_SQLITE_PATH", "./storage/smartbill.db")
	viper.SetDefault("LOCAL_QUEUE_KEY", "offlineBills")
	viper.SetDefault("REDIS_ADDRESS", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_CHANNEL", "smartbill:bills")
	viper.SetDefault("SYNC_PROBE_INTERVAL", "10s")
	viper.SetDefault("SYNC_HEARTBEAT_INTERVAL", "30s")
	viper.SetDefault("SYNC_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SYNC_LOCK_TTL", "2m")
	viper.SetDefault("BILLING_TAX_RATE", "0.18")
	viper.SetDefault("BILLING_PHONE_REGION", "IN")
	viper.SetDefault("BILLING_DEVICE_ID", hostname)
	viper.SetDefault("BILLING_STORE_NAME", "SmartBill Store")
	viper.SetDefault("JWT_SECRET", "change-this-secret-in-production")
	viper.SetDefault("JWT_EXPIRY_HOURS", 12)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	viper.SetDefault("CORS_ALLOWED_HEADERS", []string{})
	viper.SetDefault("RATE_LIMIT_REQUESTS", 100)
	viper.SetDefault("RATE_LIMIT_DURATION", 60)
	viper.SetDefault("PRINTER_TYPE", "none")
	viper.SetDefault("PRINTER_WIDTH", 32)
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")

	taxRate, err := decimal.NewFromString(viper.GetString("BILLING_TAX_RATE"))
	if err != nil || taxRate.IsNegative() {
		taxRate = decimal.RequireFromString("0.18")
	}

	return &Config{
		App: AppConfig{
			Name:     viper.GetString("APP_NAME"),
			Env:      viper.GetString("APP_ENV"),
			Port:     viper.GetString("APP_PORT"),
			Debug:    viper.GetBool("APP_DEBUG"),
			Timezone: viper.GetString("APP_TIMEZONE"),
		},
		Remote: RemoteConfig{
			Driver:       viper.GetString("REMOTE_DRIVER"),
			PollInterval: viper.GetDuration("REMOTE_POLL_INTERVAL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASSWORD"),
			SSLMode:  viper.GetString("DB_SSL_MODE"),
			Timezone: viper.GetString("DB_TIMEZONE"),
		},
		Firestore: FirestoreConfig{
			ProjectID:       viper.GetString("FIRESTORE_PROJECT_ID"),
			CredentialsFile: viper.GetString("FIRESTORE_CREDENTIALS_FILE"),
			Collection:      viper.GetString("FIRESTORE_COLLECTION"),
		},
		Local: LocalConfig{
			Driver:     viper.GetString("LOCAL_DRIVER"),
			SQLitePath: viper.GetString("LOCAL_SQLITE_PATH"),
			QueueKey:   viper.GetString("LOCAL_QUEUE_KEY"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("REDIS_ADDRESS"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
			Channel:  viper.GetString("REDIS_CHANNEL"),
		},
		Sync: SyncConfig{
			ProbeInterval:     viper.GetDuration("SYNC_PROBE_INTERVAL"),
			HeartbeatInterval: viper.GetDuration("SYNC_HEARTBEAT_INTERVAL"),
			WriteTimeout:      viper.GetDuration("SYNC_WRITE_TIMEOUT"),
			LockTTL:           viper.GetDuration("SYNC_LOCK_TTL"),
		},
		Billing: BillingConfig{
			TaxRate:     taxRate,
			PhoneRegion: viper.GetString("BILLING_PHONE_REGION"),
			DeviceID:    viper.GetString("BILLING_DEVICE_ID"),
			StoreName:   viper.GetString("BILLING_STORE_NAME"),
			StoreAddr:   viper.GetString("BILLING_STORE_ADDRESS"),
			StorePhone:  viper.GetString("BILLING_STORE_PHONE"),
			GSTIN:       viper.GetString("BILLING_GSTIN"),
		},
		Owner: OwnerConfig{
			Email:    viper.GetString("OWNER_EMAIL"),
			Password: viper.GetString("OWNER_PASSWORD"),
			StaffPIN: viper.GetString("STAFF_PIN"),
		},
		JWT: JWTConfig{
			Secret:      viper.GetString("JWT_SECRET"),
			ExpiryHours: time.Duration(viper.GetInt("JWT_EXPIRY_HOURS")) * time.Hour,
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: viper.GetStringSlice("CORS_ALLOWED_METHODS"),
			AllowedHeaders: viper.GetStringSlice("CORS_ALLOWED_HEADERS"),
		},
		RateLimit: RateLimitConfig{
			Requests: viper.GetInt("RATE_LIMIT_REQUESTS"),
			Duration: viper.GetInt("RATE_LIMIT_DURATION"),
		},
		Printer: PrinterConfig{
			Type:    viper.GetString("PRINTER_TYPE"),
			USBPath: viper.GetString("PRINTER_USB_PATH"),
			Address: viper.GetString("PRINTER_ADDRESS"),
			Width:   viper.GetInt("PRINTER_WIDTH"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
	}
}

// Location resolves the configured business timezone, falling back to local time
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (c *DatabaseConfig) DSN() string {
	return "host=" + c.Host +
		" user=" + c.User +
		" password=" + c.Password +
		" dbname=" + c.Name +
		" port=" + c.Port +
		" sslmode=" + c.SSLMode +
		" TimeZone=" + c.Timezone
}
