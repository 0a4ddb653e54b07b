package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig
	Session SessionConfig
	Client  ClientConfig
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type SessionConfig struct {
	File string
}

type ClientConfig struct {
	Env string
}

func Load() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("BACKEND_URL", "http://127.0.0.1:8000")
	viper.SetDefault("HTTP_TIMEOUT", 15) // in seconds
	viper.SetDefault("CLIENT_ENV", "development")
	viper.SetDefault("SESSION_FILE", defaultSessionFile())

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Backend: BackendConfig{
			URL:     viper.GetString("BACKEND_URL"),
			Timeout: time.Duration(viper.GetInt("HTTP_TIMEOUT")) * time.Second,
		},
		Session: SessionConfig{
			File: viper.GetString("SESSION_FILE"),
		},
		Client: ClientConfig{
			Env: viper.GetString("CLIENT_ENV"),
		},
	}
}

// defaultSessionFile is the persistent-storage analog of the browser's
// local storage: one file per OS user under the user config dir.
func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".storefront-session.json"
	}
	return filepath.Join(dir, "storefront", "session.json")
}
