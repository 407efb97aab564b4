// internal/config/config.go
package config

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Source   SourceConfig
	Forecast ForecastConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	Schema         string
	MaxConcurrency int64
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// StorageConfig points at an S3 compatible bucket.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsFile string
	ItemsFileID     string
	CatalogFileID   string
	MovementsFileID string
	SalesFileID     string
}

// SourceConfig selects where dataset rows come from. Kind is one of
// file, object, drive or postgres. The *Path values are local paths for
// file sources and object keys for object sources.
type SourceConfig struct {
	Kind            string
	DataDir         string
	ItemsPath       string
	CatalogPath     string
	MovementsPath   string
	SalesPath       string
	RefreshInterval time.Duration
}

// ForecastConfig holds default replenishment parameters used when a request
// does not set them.
type ForecastConfig struct {
	WindowMonths   int
	TargetMonths   float64
	LeadTimeMonths float64
	BufferMonths   float64
	Motives        []string
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		setDefaults()

		// Read from environment variables
		viper.AutomaticEnv()

		instance = fromViper()
		if instance.Source.Kind == "file" {
			ensureDir(instance.Source.DataDir)
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 30)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "stockwise")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA", "public")
	viper.SetDefault("DB_MAX_CONCURRENCY", 4)
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_TTL_SECONDS", 300)
	viper.SetDefault("STORAGE_ENDPOINT", "")
	viper.SetDefault("STORAGE_BUCKET", "")
	viper.SetDefault("STORAGE_REGION", "us-east-1")
	viper.SetDefault("STORAGE_USE_SSL", true)
	viper.SetDefault("DRIVE_CREDENTIALS_FILE", "")
	viper.SetDefault("SOURCE_KIND", "file")
	viper.SetDefault("SOURCE_DATA_DIR", "./data")
	viper.SetDefault("SOURCE_ITEMS_PATH", "items.xlsx")
	viper.SetDefault("SOURCE_CATALOG_PATH", "catalog.xlsx")
	viper.SetDefault("SOURCE_MOVEMENTS_PATH", "movements.xlsx")
	viper.SetDefault("SOURCE_SALES_PATH", "sales.xlsx")
	viper.SetDefault("SOURCE_REFRESH_INTERVAL", "0s")
	viper.SetDefault("FORECAST_WINDOW_MONTHS", 12)
	viper.SetDefault("FORECAST_TARGET_MONTHS", 3)
	viper.SetDefault("FORECAST_LEAD_TIME_MONTHS", 1)
	viper.SetDefault("FORECAST_BUFFER_MONTHS", 1)
	viper.SetDefault("FORECAST_MOTIVES", "")
}

func fromViper() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           viper.GetString("SERVER_PORT"),
			Mode:           viper.GetString("SERVER_MODE"),
			ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Log: LogConfig{
			Level:  viper.GetString("LOG_LEVEL"),
			Format: viper.GetString("LOG_FORMAT"),
		},
		Database: DatabaseConfig{
			Host:           viper.GetString("DB_HOST"),
			Port:           viper.GetString("DB_PORT"),
			User:           viper.GetString("DB_USER"),
			Password:       viper.GetString("DB_PASSWORD"),
			DBName:         viper.GetString("DB_NAME"),
			SSLMode:        viper.GetString("DB_SSLMODE"),
			Schema:         viper.GetString("DB_SCHEMA"),
			MaxConcurrency: viper.GetInt64("DB_MAX_CONCURRENCY"),
		},
		Cache: CacheConfig{
			Enabled:       viper.GetBool("CACHE_ENABLED"),
			RedisURL:      viper.GetString("REDIS_URL"),
			RedisHost:     viper.GetString("REDIS_HOST"),
			RedisPort:     viper.GetString("REDIS_PORT"),
			RedisPassword: viper.GetString("REDIS_PASSWORD"),
			RedisDB:       viper.GetInt("REDIS_DB"),
			TTLSeconds:    viper.GetInt("CACHE_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Endpoint:  viper.GetString("STORAGE_ENDPOINT"),
			AccessKey: viper.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: viper.GetString("STORAGE_SECRET_KEY"),
			Bucket:    viper.GetString("STORAGE_BUCKET"),
			Region:    viper.GetString("STORAGE_REGION"),
			UseSSL:    viper.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsFile: viper.GetString("DRIVE_CREDENTIALS_FILE"),
			ItemsFileID:     viper.GetString("DRIVE_ITEMS_FILE_ID"),
			CatalogFileID:   viper.GetString("DRIVE_CATALOG_FILE_ID"),
			MovementsFileID: viper.GetString("DRIVE_MOVEMENTS_FILE_ID"),
			SalesFileID:     viper.GetString("DRIVE_SALES_FILE_ID"),
		},
		Source: SourceConfig{
			Kind:            strings.ToLower(viper.GetString("SOURCE_KIND")),
			DataDir:         viper.GetString("SOURCE_DATA_DIR"),
			ItemsPath:       viper.GetString("SOURCE_ITEMS_PATH"),
			CatalogPath:     viper.GetString("SOURCE_CATALOG_PATH"),
			MovementsPath:   viper.GetString("SOURCE_MOVEMENTS_PATH"),
			SalesPath:       viper.GetString("SOURCE_SALES_PATH"),
			RefreshInterval: viper.GetDuration("SOURCE_REFRESH_INTERVAL"),
		},
		Forecast: ForecastConfig{
			WindowMonths:   viper.GetInt("FORECAST_WINDOW_MONTHS"),
			TargetMonths:   viper.GetFloat64("FORECAST_TARGET_MONTHS"),
			LeadTimeMonths: viper.GetFloat64("FORECAST_LEAD_TIME_MONTHS"),
			BufferMonths:   viper.GetFloat64("FORECAST_BUFFER_MONTHS"),
			Motives:        splitList(viper.GetString("FORECAST_MOTIVES")),
		},
	}
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}
}
