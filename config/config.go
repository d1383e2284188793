package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port   string
	JWTKey string

	DBDriver   string // postgres, mysql or sqlite
	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	LogLevel  string
	LogFormat string // json or console

	AppxBaseApi        string
	AppxClientService  string
	AppxAuthKey        string
	AppxTimeout        time.Duration
	AppxMaxConcurrency int  // 0 means every lookup runs at once
	AppxAllowPartial   bool // degrade instead of failing when a lookup errors
	LocalCmsProvider   bool // skip Appx entirely and treat every course as purchased

	PurchasesCacheMaxEntries int
	PurchasesCacheMaxSize    int
	PurchasesCacheTTL        time.Duration
	PurchasesCacheSweep      string // cron spec, empty disables the sweep
	OpenAccessAlways         bool
	CoalescePurchases        bool
}

// AppConfig is a global variable to access configuration
var AppConfig *Config

// LoadConfig initializes configuration from environment variables or defaults
func LoadConfig() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found. Using system environment variables.")
	}

	AppConfig = &Config{
		Port:   getEnv("PORT", "3000"),
		JWTKey: getEnv("JWT_SECRET_KEY", "defaultSecret"),

		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "coursehub"),
		DBPort:     getEnv("DB_PORT", "5432"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AppxBaseApi:        strings.TrimRight(getEnv("APPX_BASE_API", ""), "/"),
		AppxClientService:  getEnv("APPX_CLIENT_SERVICE", ""),
		AppxAuthKey:        getEnv("APPX_AUTH_KEY", ""),
		AppxTimeout:        getEnvDuration("APPX_TIMEOUT", 10*time.Second),
		AppxMaxConcurrency: getEnvInt("APPX_MAX_CONCURRENCY", 0),
		AppxAllowPartial:   getEnvBool("APPX_ALLOW_PARTIAL", false),
		LocalCmsProvider:   getEnvBool("LOCAL_CMS_PROVIDER", false),

		PurchasesCacheMaxEntries: getEnvInt("PURCHASES_CACHE_MAX_ENTRIES", 100),
		PurchasesCacheMaxSize:    getEnvInt("PURCHASES_CACHE_MAX_SIZE", 5000),
		PurchasesCacheTTL:        getEnvDuration("PURCHASES_CACHE_TTL", 24*time.Hour),
		PurchasesCacheSweep:      os.Getenv("PURCHASES_CACHE_SWEEP"),
		OpenAccessAlways:         getEnvBool("PURCHASES_OPEN_ACCESS_ALWAYS", false),
		CoalescePurchases:        getEnvBool("PURCHASES_COALESCE", true),
	}
	if _, set := os.LookupEnv("PURCHASES_CACHE_SWEEP"); !set {
		AppConfig.PurchasesCacheSweep = "@every 1h"
	}

	// Validate critical configuration
	if AppConfig.JWTKey == "defaultSecret" {
		log.Println("Warning: Using default JWT_SECRET_KEY. Update it in your environment.")
	}
	if !AppConfig.LocalCmsProvider && AppConfig.AppxBaseApi == "" {
		log.Println("Warning: APPX_BASE_API is empty and LOCAL_CMS_PROVIDER is off. Purchase checks will fail.")
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt retrieves an environment variable as an integer or returns the default integer value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to int: %v", key, err)
		return defaultValue
	}
	return intValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to bool: %v", key, err)
		return defaultValue
	}
	return boolValue
}

// getEnvDuration accepts Go duration strings ("90s", "24h")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Error converting environment variable %s to duration: %v", key, err)
		return defaultValue
	}
	return d
}
