package database

import (
	"fmt"
	"strings"
)

// Supported drivers
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

type table struct {
	name    string
	columns []string
	// index columns, created as a non-unique index on each
	index  []string
	unique string
}

// tables mirrors the station store layout. Only the columns the pipeline
// reads are required; existing databases keep their own extra columns.
var tables = []table{
	{
		name: "telemetry",
		columns: []string{
			"ts BIGINT NOT NULL",
			"averageVoltage DOUBLE",
			"totalCurrent DOUBLE",
			"averageTemperature DOUBLE",
			"systemSOC DOUBLE",
			"systemSOH DOUBLE",
		},
		index: []string{"ts"},
	},
	{
		name: "system_status",
		columns: []string{
			"ts BIGINT NOT NULL",
			"status VARCHAR(64) NOT NULL DEFAULT ''",
			"`load` DOUBLE",
			"totalPower DOUBLE",
		},
		index: []string{"ts"},
	},
	{
		name: "alarm_snapshots",
		columns: []string{
			"ts BIGINT NOT NULL",
			"totalAlarms DOUBLE",
			"criticalAlarms DOUBLE",
			"warningAlarms DOUBLE",
			"infoAlarms DOUBLE",
		},
		unique: "ts",
	},
	{
		name:    "battery_groups_snapshots",
		columns: []string{"ts BIGINT NOT NULL", "json %s NOT NULL"},
		unique:  "ts",
	},
	{
		name:    "coordination_units_snapshots",
		columns: []string{"ts BIGINT NOT NULL", "json %s NOT NULL"},
		unique:  "ts",
	},
	{
		name: "alarm_occurrences",
		columns: []string{
			"ts BIGINT NOT NULL",
			"groupId BIGINT",
			"source VARCHAR(64) NOT NULL DEFAULT ''",
			"device VARCHAR(64) NOT NULL DEFAULT ''",
			"type VARCHAR(64) NOT NULL",
			"level VARCHAR(32) NOT NULL",
			"description VARCHAR(255) NOT NULL DEFAULT ''",
			"status VARCHAR(32) NOT NULL DEFAULT ''",
		},
		index: []string{"ts", "groupId, ts"},
	},
}

// schemaStatements renders the DDL for a driver. MySQL takes indexes inline
// and one statement per Exec; SQLite takes separate CREATE INDEX statements.
func schemaStatements(driver string) ([]string, error) {
	var stmts []string
	for _, t := range tables {
		switch driver {
		case DriverMySQL:
			cols := []string{"id BIGINT AUTO_INCREMENT PRIMARY KEY"}
			for _, c := range t.columns {
				cols = append(cols, strings.ReplaceAll(c, "%s", "MEDIUMTEXT"))
			}
			for i, idx := range t.index {
				cols = append(cols, fmt.Sprintf("INDEX idx_%s_%d (%s)", t.name, i, idx))
			}
			if t.unique != "" {
				cols = append(cols, fmt.Sprintf("UNIQUE INDEX idx_%s_unique (%s)", t.name, t.unique))
			}
			stmts = append(stmts, fmt.Sprintf(
				"CREATE TABLE IF NOT EXISTS %s (\n%s\n) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
				t.name, strings.Join(cols, ",\n")))

		case DriverSQLite:
			cols := []string{"id INTEGER PRIMARY KEY AUTOINCREMENT"}
			for _, c := range t.columns {
				cols = append(cols, strings.ReplaceAll(c, "%s", "TEXT"))
			}
			stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", t.name, strings.Join(cols, ",\n")))
			for i, idx := range t.index {
				stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%d ON %s(%s)", t.name, i, t.name, idx))
			}
			if t.unique != "" {
				stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS idx_%s_unique ON %s(%s)", t.name, t.name, t.unique))
			}

		default:
			return nil, fmt.Errorf("unsupported driver %q", driver)
		}
	}
	return stmts, nil
}
