package database

import (
	"database/sql"
	"encoding/json"
	"math"
	"math/rand"

	"stationcast/internal/models"
)

// SynthOptions shapes a synthetic station history.
type SynthOptions struct {
	StartMs int64
	StepMs  int64
	Steps   int
	Groups  int
	Seed    int64
	// EventEvery is the mean number of steps between alarm occurrences
	// per group; 0 disables occurrences.
	EventEvery int
}

type synthBMS struct {
	SocPct                   float64 `json:"socPct"`
	TemperatureC             float64 `json:"temperatureC"`
	InsulationResistanceKohm float64 `json:"insulationResistanceKohm"`
	DeltaCellVoltageMv       float64 `json:"deltaCellVoltageMv"`
	MaxCellTempC             float64 `json:"maxCellTempC"`
	WarningCount             int     `json:"warningCount"`
	FaultCount               int     `json:"faultCount"`
}

type synthPCS struct {
	SetpointKw    float64 `json:"setpointKw"`
	ActualKw      float64 `json:"actualKw"`
	Temperature   float64 `json:"temperature"`
	DcVoltageV    float64 `json:"dcVoltageV"`
	DcCurrentA    float64 `json:"dcCurrentA"`
	EfficiencyPct float64 `json:"efficiencyPct"`
}

type synthGroup struct {
	ID  int      `json:"id"`
	BMS synthBMS `json:"bms"`
	PCS synthPCS `json:"pcs"`
}

type synthUnit struct {
	Inputs struct {
		Upper struct {
			TargetPowerKw float64 `json:"targetPowerKw"`
		} `json:"upper"`
	} `json:"inputs"`
}

const activeSteps = 3

func valid(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

// Synthetic generates a deterministic history: a periodic power cycle, SOC
// drifting with power, noisy group readings and random alarm occurrences.
func Synthetic(opts SynthOptions) *Batch {
	rng := rand.New(rand.NewSource(opts.Seed))
	b := &Batch{}
	soc := make([]float64, opts.Groups)
	// active counters stay raised for a few steps after an occurrence
	warnings := make([]int, opts.Groups)
	faults := make([]int, opts.Groups)
	for g := range soc {
		soc[g] = 40 + 20*rng.Float64()
	}

	for step := 0; step < opts.Steps; step++ {
		ts := opts.StartMs + int64(step)*opts.StepMs
		phase := 2 * math.Pi * float64(step) / 360
		target := 500 * math.Sin(phase)

		var unit synthUnit
		unit.Inputs.Upper.TargetPowerKw = math.Round(target*10) / 10
		unitJSON, _ := json.Marshal([]synthUnit{unit})
		b.Coordination = append(b.Coordination, models.SnapshotRow{TS: ts, JSON: string(unitJSON)})

		groups := make([]synthGroup, opts.Groups)
		var socSum, tempSum float64
		for g := range groups {
			share := target / float64(opts.Groups)
			soc[g] = math.Max(0, math.Min(100, soc[g]-share*0.0005+rng.NormFloat64()*0.05))
			temp := 25 + math.Abs(share)*0.02 + rng.NormFloat64()*0.3

			if warnings[g] > 0 {
				warnings[g]--
			}
			if faults[g] > 0 {
				faults[g]--
			}
			if opts.EventEvery > 0 && rng.Intn(opts.EventEvery) == 0 {
				level := models.LevelWarning
				typ := "over-temperature"
				switch rng.Intn(4) {
				case 0:
					level = models.LevelCritical
					faults[g] = activeSteps
				case 1:
					typ = models.TypeLatched
					faults[g] = activeSteps
				default:
					warnings[g] = activeSteps
				}
				b.Occurrences = append(b.Occurrences, models.AlarmOccurrence{
					TS:      ts,
					GroupID: sql.NullInt64{Int64: int64(g + 1), Valid: true},
					Type:    typ,
					Level:   level,
				})
			}

			groups[g] = synthGroup{
				ID: g + 1,
				BMS: synthBMS{
					SocPct:                   soc[g],
					TemperatureC:             temp,
					InsulationResistanceKohm: 2000 + rng.NormFloat64()*50,
					DeltaCellVoltageMv:       15 + rng.Float64()*10,
					MaxCellTempC:             temp + 2 + rng.Float64(),
					WarningCount:             min(warnings[g], 1),
					FaultCount:               min(faults[g], 1),
				},
				PCS: synthPCS{
					SetpointKw:    share,
					ActualKw:      share + rng.NormFloat64()*2,
					Temperature:   35 + rng.NormFloat64(),
					DcVoltageV:    750 + rng.NormFloat64()*5,
					DcCurrentA:    share * 1.3,
					EfficiencyPct: 96 + rng.Float64(),
				},
			}
			socSum += soc[g]
			tempSum += temp
		}
		groupJSON, _ := json.Marshal(groups)
		b.Groups = append(b.Groups, models.SnapshotRow{TS: ts, JSON: string(groupJSON)})

		n := float64(opts.Groups)
		if n == 0 {
			n = 1
		}
		b.Telemetry = append(b.Telemetry, models.TelemetryRow{
			TS:                 ts,
			AverageVoltage:     valid(750 + rng.NormFloat64()*3),
			TotalCurrent:       valid(target * 1.3),
			AverageTemperature: valid(tempSum / n),
			SystemSOC:          valid(socSum / n),
			SystemSOH:          valid(98),
		})
		b.SystemStatus = append(b.SystemStatus, models.SystemStatusRow{
			TS:         ts,
			Load:       valid(300 + rng.Float64()*50),
			TotalPower: valid(target),
		})
		total, critical := 0, 0
		for g := range warnings {
			total += min(warnings[g], 1) + min(faults[g], 1)
			critical += min(faults[g], 1)
		}
		b.Alarms = append(b.Alarms, models.AlarmSnapshotRow{
			TS:             ts,
			TotalAlarms:    valid(float64(total)),
			CriticalAlarms: valid(float64(critical)),
			WarningAlarms:  valid(float64(total - critical)),
			InfoAlarms:     valid(0),
		})
	}
	return b
}
