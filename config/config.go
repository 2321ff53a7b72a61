package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Postgres PostgresConfig
}

type ServerConfig struct {
	ServiceName string
	AppEnv      string
	HTTPAddr    string
}

type StoreConfig struct {
	Backend string
}

type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			ServiceName: getEnv("SERVICE_NAME", "stockengine"),
			AppEnv:      getEnv("ENV", "dev"),
			HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		},
		Store: StoreConfig{
			Backend: getEnv("STORE_BACKEND", BackendMemory),
		},
		Postgres: PostgresConfig{
			Host:         getEnv("POSTGRES_HOST", "localhost"),
			Port:         getEnv("POSTGRES_PORT", "5432"),
			User:         getEnv("POSTGRES_USER", "stockengine"),
			Password:     getEnv("POSTGRES_PASSWORD", "stockengine"),
			DBName:       getEnv("POSTGRES_DB", "stockengine"),
			SSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
	}
}

// DSN renders the postgres connection string expected by the pgx stdlib driver.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
