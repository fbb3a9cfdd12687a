package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stationcast/internal/metrics"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB represents the station store connection
type DB struct {
	conn   *sql.DB
	driver string
	logger *zap.Logger
}

// NewDB opens the station store and initializes the schema.
// sqlite3 dsn example: "file:station.db?_busy_timeout=5000"
// mysql dsn example: "user:pass@tcp(localhost:3306)/station?parseTime=true"
func NewDB(driver, dsn string, logger *zap.Logger) (*DB, error) {
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Configure connection pool
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(5)
	}
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{conn: conn, driver: driver, logger: logger}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

func (db *DB) initSchema() error {
	statements, err := schemaStatements(db.driver)
	if err != nil {
		return err
	}
	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	db.logger.Debug("Schema ready", zap.String("driver", db.driver), zap.Int("statements", len(statements)))
	return nil
}

// Driver returns the driver name the store was opened with
func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) recordStats() {
	stats := db.conn.Stats()
	metrics.UpdateDBConnectionStats(stats.OpenConnections, stats.InUse, stats.Idle)
}

// query runs a SELECT and records its metrics. scan is called once per row.
func (db *DB) query(ctx context.Context, table, query string, args []any, scan func(*sql.Rows) error) error {
	queryStart := time.Now()
	defer db.recordStats()

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
		return fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		if err = scan(rows); err != nil {
			break
		}
		count++
	}
	if err == nil {
		err = rows.Err()
	}
	metrics.RecordDBQuery("SELECT", table, time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", table, err)
	}

	metrics.RowsLoaded.WithLabelValues(table).Set(float64(count))
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
