package dataset

import (
	"encoding/json"
	"strconv"
	"strings"

	"stationcast/internal/features"
	"stationcast/internal/models"
	"stationcast/internal/series"

	"go.uber.org/zap"
)

type targetRow struct {
	TS     int64
	Target series.Value
}

type coordinationUnit struct {
	Inputs *struct {
		Upper *struct {
			TargetPowerKw series.Value `json:"targetPowerKw"`
		} `json:"upper"`
	} `json:"inputs"`
}

// decodeTargets reads the commanded station target from the first
// coordination unit of every snapshot. Every snapshot yields a row; a
// payload that does not have the expected shape yields a missing target.
func decodeTargets(rows []models.SnapshotRow, logger *zap.Logger) []targetRow {
	out := make([]targetRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, targetRow{TS: r.TS, Target: decodeTarget(r.JSON)})
	}
	logger.Debug("Decoded coordination targets", zap.Int("rows", len(out)))
	return out
}

func decodeTarget(payload string) series.Value {
	var units []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &units); err != nil || len(units) == 0 {
		return series.Missing
	}
	var u coordinationUnit
	if err := json.Unmarshal(units[0], &u); err != nil {
		return series.Missing
	}
	if u.Inputs == nil || u.Inputs.Upper == nil {
		return series.Missing
	}
	return u.Inputs.Upper.TargetPowerKw
}

type groupPayload struct {
	ID  json.RawMessage `json:"id"`
	BMS json.RawMessage `json:"bms"`
	PCS json.RawMessage `json:"pcs"`
}

// sourceKey splits a group field such as bms_socPct into its payload
// section and key.
func sourceKey(field string) (section, key string) {
	section, key, _ = strings.Cut(field, "_")
	return section, key
}

// groupID accepts integer JSON literals only.
func groupID(raw json.RawMessage) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	return id, err == nil
}

func section(raw json.RawMessage) map[string]series.Value {
	values := map[string]series.Value{}
	if len(raw) == 0 {
		return values
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return map[string]series.Value{}
	}
	return values
}

// decodeGroups expands every battery group snapshot into one row per group.
// Snapshots that are not a JSON list, and list entries that are not objects
// with an integer id, are dropped. An empty input still yields the full
// column schema.
func decodeGroups(rows []models.SnapshotRow, logger *zap.Logger) (*series.Frame, error) {
	names := append([]string{features.GroupID}, features.GroupSourceFields...)
	var ts, ids []int64
	cols := make([][]series.Value, len(names))

	dropped := 0
	for _, r := range rows {
		var groups []json.RawMessage
		if err := json.Unmarshal([]byte(r.JSON), &groups); err != nil {
			logger.Debug("Skipping malformed group snapshot", zap.Int64("ts", r.TS), zap.Error(err))
			dropped++
			continue
		}
		for _, raw := range groups {
			var g groupPayload
			if err := json.Unmarshal(raw, &g); err != nil {
				continue
			}
			id, ok := groupID(g.ID)
			if !ok {
				continue
			}
			sections := map[string]map[string]series.Value{
				"bms": section(g.BMS),
				"pcs": section(g.PCS),
			}
			ts = append(ts, r.TS)
			ids = append(ids, id)
			cols[0] = append(cols[0], series.Of(float64(id)))
			for i, field := range features.GroupSourceFields {
				sec, key := sourceKey(field)
				cols[i+1] = append(cols[i+1], sections[sec][key])
			}
		}
	}
	if dropped > 0 {
		logger.Info("Dropped malformed group snapshots", zap.Int("count", dropped))
	}

	if ts == nil {
		ts, ids = []int64{}, []int64{}
	}
	for i := range cols {
		if cols[i] == nil {
			cols[i] = []series.Value{}
		}
	}
	return series.NewKeyed(ts, ids, names, cols)
}
