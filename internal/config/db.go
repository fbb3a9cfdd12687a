package config

import (
	"fmt"
	"os"
)

// GetDatabaseDSN returns the database connection string.
// The DB_USER/DB_PASSWORD/DB_HOST/DB_PORT/DB_NAME quintet builds a MySQL DSN
// and wins over DATABASE_DSN; fallback is used when neither is set.
func GetDatabaseDSN(fallback string) string {
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	database := os.Getenv("DB_NAME")

	if user != "" && password != "" && host != "" && port != "" && database != "" {
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true", user, password, host, port, database)
	}

	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		return dsn
	}

	return fallback
}
