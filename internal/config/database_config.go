package config

import "fmt"

type DatabaseConfig interface {
	// GetStorageBackend selects "memory" or "postgres".
	GetStorageBackend() string
	GetDatabaseDSN() string
}

type Database struct{}

var _ DatabaseConfig = Database{}

func (Database) GetStorageBackend() string {
	return GetEnv("STORAGE_BACKEND", "memory")
}

func (Database) GetDatabaseDSN() string {
	if dsn := GetEnv("DATABASE_DSN", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		GetEnv("DB_HOST", "localhost"),
		GetEnv("DB_PORT", "5432"),
		GetEnv("DB_USER", "mubarokah"),
		GetEnv("DB_PASSWORD", ""),
		GetEnv("DB_NAME", "mubarokah_id"),
		GetEnv("DB_SSLMODE", "disable"),
	)
}
