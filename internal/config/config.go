package config

import (
	"log"

	"tpv-haido/internal/storage"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	API     APIConfig
	Redis   RedisConfig
	JWT     JWTConfig
	CORS    CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// StorageConfig selects and configures the active backend.
type StorageConfig struct {
	Mode       storage.Mode
	SQLitePath string
}

// APIConfig configures the remote http backend.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_ENV", "development")
	viper.SetDefault("STORAGE_MODE", string(storage.ModeSQLite))
	viper.SetDefault("SQLITE_PATH", "tpv.db")
	viper.SetDefault("API_BASE_URL", "http://localhost:8080")
	viper.SetDefault("API_TIMEOUT_SECONDS", 30)
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:1420"})

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: viper.GetString("SERVER_PORT"),
			Env:  viper.GetString("SERVER_ENV"),
		},
		Storage: StorageConfig{
			Mode:       storage.Mode(viper.GetString("STORAGE_MODE")),
			SQLitePath: viper.GetString("SQLITE_PATH"),
		},
		API: APIConfig{
			BaseURL:        viper.GetString("API_BASE_URL"),
			TimeoutSeconds: viper.GetInt("API_TIMEOUT_SECONDS"),
		},
		Redis: RedisConfig{
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetString("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		CORS: CORSConfig{
			AllowedOrigins: viper.GetStringSlice("CORS_ALLOWED_ORIGINS"),
		},
	}
}
