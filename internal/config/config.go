// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Forecast ForecastConfig
	Reorder  ReorderConfig
	Alert    AlertConfig
	Storage  StorageConfig
	Pipeline PipelineConfig
	Drive    DriveConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type AppConfig struct {
	UploadDir string
	DataDir   string
}

type CacheConfig struct {
	Enabled            bool
	RedisURL           string
	RedisHost          string
	RedisPort          string
	RedisPassword      string
	RedisDB            int
	ForecastTTLSeconds int
}

type ForecastConfig struct {
	Model       string
	Horizon     int
	LagDepth    int
	TrainRatio  float64
	TreeDepth   int
	TreeMinLeaf int
}

type ReorderConfig struct {
	RulesFile     string
	AllowStacking bool
}

type AlertConfig struct {
	Channel     string
	Store       string
	StatePath   string
	UnitDivisor float64
	UnitLabel   string
}

type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type PipelineConfig struct {
	Workers int
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
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
		viper.AutomaticEnv()

		ensureDir(viper.GetString("APP_UPLOAD_DIR"))
		ensureDir(viper.GetString("APP_DATA_DIR"))

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
				LogLevel:       viper.GetString("LOG_LEVEL"),
				LogFormat:      viper.GetString("LOG_FORMAT"),
			},
			Database: DatabaseConfig{
				Enabled:  viper.GetBool("DB_ENABLED"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			App: AppConfig{
				UploadDir: viper.GetString("APP_UPLOAD_DIR"),
				DataDir:   viper.GetString("APP_DATA_DIR"),
			},
			Cache: CacheConfig{
				Enabled:            viper.GetBool("CACHE_ENABLED"),
				RedisURL:           viper.GetString("REDIS_URL"),
				RedisHost:          viper.GetString("REDIS_HOST"),
				RedisPort:          viper.GetString("REDIS_PORT"),
				RedisPassword:      viper.GetString("REDIS_PASSWORD"),
				RedisDB:            viper.GetInt("REDIS_DB"),
				ForecastTTLSeconds: viper.GetInt("CACHE_FORECAST_TTL_SECONDS"),
			},
			Forecast: ForecastConfig{
				Model:       viper.GetString("FORECAST_MODEL"),
				Horizon:     viper.GetInt("FORECAST_HORIZON"),
				LagDepth:    viper.GetInt("FORECAST_LAG_DEPTH"),
				TrainRatio:  viper.GetFloat64("FORECAST_TRAIN_RATIO"),
				TreeDepth:   viper.GetInt("FORECAST_TREE_DEPTH"),
				TreeMinLeaf: viper.GetInt("FORECAST_TREE_MIN_LEAF"),
			},
			Reorder: ReorderConfig{
				RulesFile:     viper.GetString("REORDER_RULES_FILE"),
				AllowStacking: viper.GetBool("REORDER_ALLOW_STACKING"),
			},
			Alert: AlertConfig{
				Channel:     viper.GetString("ALERT_CHANNEL"),
				Store:       viper.GetString("ALERT_STORE"),
				StatePath:   viper.GetString("ALERT_STATE_PATH"),
				UnitDivisor: viper.GetFloat64("ALERT_UNIT_DIVISOR"),
				UnitLabel:   viper.GetString("ALERT_UNIT_LABEL"),
			},
			Storage: StorageConfig{
				Enabled:   viper.GetBool("STORAGE_ENABLED"),
				Endpoint:  viper.GetString("S3_ENDPOINT"),
				AccessKey: viper.GetString("S3_ACCESS_KEY"),
				SecretKey: viper.GetString("S3_SECRET_KEY"),
				Bucket:    viper.GetString("S3_BUCKET"),
				Region:    viper.GetString("S3_REGION"),
				UseSSL:    viper.GetBool("S3_USE_SSL"),
				Prefix:    viper.GetString("S3_PREFIX"),
			},
			Pipeline: PipelineConfig{
				Workers: viper.GetInt("PIPELINE_WORKERS"),
			},
			Drive: DriveConfig{
				CredentialsJSON: viper.GetString("GOOGLE_CREDENTIALS_JSON"),
				FolderID:        viper.GetString("DRIVE_FOLDER_ID"),
			},
		}
	})

	return instance
}

func setDefaults() {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_MODE", "debug")
	viper.SetDefault("SERVER_READ_TIMEOUT", 15)
	viper.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "console")
	viper.SetDefault("DB_ENABLED", false)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "postgres")
	viper.SetDefault("DB_PASSWORD", "postgres")
	viper.SetDefault("DB_NAME", "autoreorder")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	viper.SetDefault("APP_DATA_DIR", "./data/output")
	viper.SetDefault("CACHE_ENABLED", false)
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("REDIS_HOST", "127.0.0.1")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CACHE_FORECAST_TTL_SECONDS", 3600)
	viper.SetDefault("FORECAST_MODEL", "linear")
	viper.SetDefault("FORECAST_HORIZON", 4)
	viper.SetDefault("FORECAST_LAG_DEPTH", 3)
	viper.SetDefault("FORECAST_TRAIN_RATIO", 0.8)
	viper.SetDefault("FORECAST_TREE_DEPTH", 4)
	viper.SetDefault("FORECAST_TREE_MIN_LEAF", 2)
	viper.SetDefault("REORDER_RULES_FILE", "./rules.yaml")
	viper.SetDefault("REORDER_ALLOW_STACKING", false)
	viper.SetDefault("ALERT_CHANNEL", "shortage")
	viper.SetDefault("ALERT_STORE", "file")
	viper.SetDefault("ALERT_STATE_PATH", "./data/alert_state.json")
	viper.SetDefault("ALERT_UNIT_DIVISOR", 200)
	viper.SetDefault("ALERT_UNIT_LABEL", "kg")
	viper.SetDefault("STORAGE_ENABLED", false)
	viper.SetDefault("S3_REGION", "us-east-1")
	viper.SetDefault("S3_USE_SSL", true)
	viper.SetDefault("PIPELINE_WORKERS", 4)
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}

// EnsureParentDir creates the directory holding a file path.
func EnsureParentDir(path string) {
	ensureDir(filepath.Dir(path))
}
