package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stationcast/internal/metrics"
	"stationcast/internal/models"

	"go.uber.org/zap"
)

// Batch is a set of rows written to the store in one transaction
type Batch struct {
	Telemetry    []models.TelemetryRow
	SystemStatus []models.SystemStatusRow
	Alarms       []models.AlarmSnapshotRow
	Groups       []models.SnapshotRow
	Coordination []models.SnapshotRow
	Occurrences  []models.AlarmOccurrence
}

// Len returns the total number of rows in the batch
func (b *Batch) Len() int {
	return len(b.Telemetry) + len(b.SystemStatus) + len(b.Alarms) +
		len(b.Groups) + len(b.Coordination) + len(b.Occurrences)
}

type insert struct {
	table string
	query string
	rows  int
	args  func(i int) []any
}

// WriteBatch inserts every row of b, all or nothing.
func (db *DB) WriteBatch(ctx context.Context, b *Batch) error {
	if b.Len() == 0 {
		db.logger.Info("Nothing to write")
		return nil
	}
	defer db.recordStats()

	inserts := []insert{
		{
			table: "telemetry",
			query: `INSERT INTO telemetry (ts, averageVoltage, totalCurrent, averageTemperature, systemSOC, systemSOH) VALUES (?, ?, ?, ?, ?, ?)`,
			rows:  len(b.Telemetry),
			args: func(i int) []any {
				r := b.Telemetry[i]
				return []any{r.TS, r.AverageVoltage, r.TotalCurrent, r.AverageTemperature, r.SystemSOC, r.SystemSOH}
			},
		},
		{
			table: "system_status",
			query: "INSERT INTO system_status (ts, `load`, totalPower) VALUES (?, ?, ?)",
			rows:  len(b.SystemStatus),
			args: func(i int) []any {
				r := b.SystemStatus[i]
				return []any{r.TS, r.Load, r.TotalPower}
			},
		},
		{
			table: "alarm_snapshots",
			query: `INSERT INTO alarm_snapshots (ts, totalAlarms, criticalAlarms, warningAlarms, infoAlarms) VALUES (?, ?, ?, ?, ?)`,
			rows:  len(b.Alarms),
			args: func(i int) []any {
				r := b.Alarms[i]
				return []any{r.TS, r.TotalAlarms, r.CriticalAlarms, r.WarningAlarms, r.InfoAlarms}
			},
		},
		{
			table: "battery_groups_snapshots",
			query: `INSERT INTO battery_groups_snapshots (ts, json) VALUES (?, ?)`,
			rows:  len(b.Groups),
			args:  func(i int) []any { return []any{b.Groups[i].TS, b.Groups[i].JSON} },
		},
		{
			table: "coordination_units_snapshots",
			query: `INSERT INTO coordination_units_snapshots (ts, json) VALUES (?, ?)`,
			rows:  len(b.Coordination),
			args:  func(i int) []any { return []any{b.Coordination[i].TS, b.Coordination[i].JSON} },
		},
		{
			table: "alarm_occurrences",
			query: `INSERT INTO alarm_occurrences (ts, groupId, type, level) VALUES (?, ?, ?, ?)`,
			rows:  len(b.Occurrences),
			args: func(i int) []any {
				o := b.Occurrences[i]
				return []any{o.TS, o.GroupID, o.Type, o.Level}
			},
		},
	}

	// Begin transaction for batch insert
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if committed

	for _, ins := range inserts {
		if ins.rows == 0 {
			continue
		}
		if err := execAll(ctx, tx, ins); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.logger.Info("Stored batch", zap.Int("rows", b.Len()))
	return nil
}

func execAll(ctx context.Context, tx *sql.Tx, ins insert) error {
	queryStart := time.Now()
	stmt, err := tx.PrepareContext(ctx, ins.query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", ins.table, err)
	}
	defer stmt.Close()

	for i := 0; i < ins.rows; i++ {
		if _, err = stmt.ExecContext(ctx, ins.args(i)...); err != nil {
			break
		}
	}
	metrics.RecordDBQuery("INSERT", ins.table, time.Since(queryStart), err)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", ins.table, err)
	}
	return nil
}
