package database

import (
	"context"
	"database/sql"
	"strings"

	"stationcast/internal/models"
)

// rangeClause renders the WHERE clause for an inclusive time range.
func rangeClause(rng models.TimeRange) (string, []any) {
	var conds []string
	var args []any
	if rng.Start != nil {
		conds = append(conds, "ts >= ?")
		args = append(args, *rng.Start)
	}
	if rng.End != nil {
		conds = append(conds, "ts <= ?")
		args = append(args, *rng.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func selectRange(columns, table string, rng models.TimeRange) (string, []any) {
	where, args := rangeClause(rng)
	return "SELECT " + columns + " FROM " + table + where + " ORDER BY ts ASC", args
}

// Telemetry implements dataset.Source
func (db *DB) Telemetry(ctx context.Context, rng models.TimeRange) ([]models.TelemetryRow, error) {
	q, args := selectRange("ts, averageVoltage, totalCurrent, averageTemperature, systemSOC, systemSOH", "telemetry", rng)
	var out []models.TelemetryRow
	err := db.query(ctx, "telemetry", q, args, func(rows *sql.Rows) error {
		var r models.TelemetryRow
		if err := rows.Scan(&r.TS, &r.AverageVoltage, &r.TotalCurrent, &r.AverageTemperature, &r.SystemSOC, &r.SystemSOH); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// SystemStatus implements dataset.Source
func (db *DB) SystemStatus(ctx context.Context, rng models.TimeRange) ([]models.SystemStatusRow, error) {
	q, args := selectRange("ts, `load`, totalPower", "system_status", rng)
	var out []models.SystemStatusRow
	err := db.query(ctx, "system_status", q, args, func(rows *sql.Rows) error {
		var r models.SystemStatusRow
		if err := rows.Scan(&r.TS, &r.Load, &r.TotalPower); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// AlarmSnapshots implements dataset.Source
func (db *DB) AlarmSnapshots(ctx context.Context, rng models.TimeRange) ([]models.AlarmSnapshotRow, error) {
	q, args := selectRange("ts, totalAlarms, criticalAlarms, warningAlarms, infoAlarms", "alarm_snapshots", rng)
	var out []models.AlarmSnapshotRow
	err := db.query(ctx, "alarm_snapshots", q, args, func(rows *sql.Rows) error {
		var r models.AlarmSnapshotRow
		if err := rows.Scan(&r.TS, &r.TotalAlarms, &r.CriticalAlarms, &r.WarningAlarms, &r.InfoAlarms); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

func (db *DB) snapshots(ctx context.Context, table string, rng models.TimeRange) ([]models.SnapshotRow, error) {
	q, args := selectRange("ts, json", table, rng)
	var out []models.SnapshotRow
	err := db.query(ctx, table, q, args, func(rows *sql.Rows) error {
		var r models.SnapshotRow
		if err := rows.Scan(&r.TS, &r.JSON); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	return out, err
}

// GroupSnapshots implements dataset.Source
func (db *DB) GroupSnapshots(ctx context.Context, rng models.TimeRange) ([]models.SnapshotRow, error) {
	return db.snapshots(ctx, "battery_groups_snapshots", rng)
}

// CoordinationSnapshots implements dataset.Source
func (db *DB) CoordinationSnapshots(ctx context.Context, rng models.TimeRange) ([]models.SnapshotRow, error) {
	return db.snapshots(ctx, "coordination_units_snapshots", rng)
}

// AlarmOccurrences implements dataset.Source. The full history is returned
// regardless of the training window.
func (db *DB) AlarmOccurrences(ctx context.Context) ([]models.AlarmOccurrence, error) {
	const q = `SELECT ts, groupId, type, level FROM alarm_occurrences ORDER BY ts ASC`
	var out []models.AlarmOccurrence
	err := db.query(ctx, "alarm_occurrences", q, nil, func(rows *sql.Rows) error {
		var o models.AlarmOccurrence
		if err := rows.Scan(&o.TS, &o.GroupID, &o.Type, &o.Level); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, err
}
