package features

// Field names shared by the station and group frames.
const (
	TS            = "ts"
	GroupID       = "groupId"
	StationTarget = "stationTargetPowerKw"
	WarningCount  = "bms_warningCount"
	FaultCount    = "bms_faultCount"
	GroupSocAvg   = "groupSocAvg"
	GroupTempMax  = "groupTempMax"
	GroupInsuMin  = "groupInsuMin"
	GroupDeltaMax = "groupDeltaMax"
	GroupPcsKwSum = "groupPcsActualKwSum"
)

// Station source fields, by table.
var (
	TelemetryFields     = []string{"averageVoltage", "totalCurrent", "averageTemperature", "systemSOC", "systemSOH"}
	SystemStatusFields  = []string{"load", "totalPower"}
	AlarmSnapshotFields = []string{"totalAlarms", "criticalAlarms", "warningAlarms", "infoAlarms"}
)

// GroupSourceFields are decoded from each battery group payload.
var GroupSourceFields = []string{
	"bms_socPct",
	"bms_temperatureC",
	"bms_insulationResistanceKohm",
	"bms_deltaCellVoltageMv",
	"bms_maxCellTempC",
	WarningCount,
	FaultCount,
	"pcs_setpointKw",
	"pcs_actualKw",
	"pcs_temperature",
	"pcs_dcVoltageV",
	"pcs_dcCurrentA",
	"pcs_efficiencyPct",
}

// StationBase is the station field list; every entry gets derived columns.
var StationBase = []string{
	StationTarget,
	"systemSOC",
	"systemSOH",
	"averageVoltage",
	"totalCurrent",
	"averageTemperature",
	"load",
	"totalPower",
	"totalAlarms",
	"criticalAlarms",
	"warningAlarms",
	"infoAlarms",
	GroupSocAvg,
	GroupTempMax,
	GroupInsuMin,
	GroupDeltaMax,
	GroupPcsKwSum,
}

// StationInherited are the station columns joined onto every group row.
var StationInherited = []string{
	StationTarget,
	"systemSOC",
	"systemSOH",
	"load",
	"totalPower",
	GroupInsuMin,
	GroupDeltaMax,
	GroupTempMax,
	GroupSocAvg,
}

// GroupFill is the list of group columns filled before derivation.
var GroupFill = append(append([]string{GroupID}, GroupSourceFields...), StationInherited...)

// GroupRolling are the group fields that get derived columns.
var GroupRolling = []string{
	"bms_socPct",
	"bms_temperatureC",
	"bms_insulationResistanceKohm",
	"bms_deltaCellVoltageMv",
	"bms_maxCellTempC",
	"pcs_actualKw",
	"pcs_setpointKw",
	StationTarget,
	"systemSOC",
	"load",
	GroupInsuMin,
	GroupDeltaMax,
	GroupTempMax,
	GroupSocAvg,
}

// GroupTarget maps a group target field to its key in prediction output.
type GroupTarget struct {
	Field string
	Key   string
}

// GroupTargets are forecast for every group and horizon.
var GroupTargets = []GroupTarget{
	{Field: "bms_socPct", Key: "socPct"},
	{Field: "bms_temperatureC", Key: "temperatureC"},
	{Field: "bms_insulationResistanceKohm", Key: "insulationResistanceKohm"},
	{Field: "bms_deltaCellVoltageMv", Key: "deltaCellVoltageMv"},
	{Field: "pcs_actualKw", Key: "pcsActualKw"},
}

// GroupTargetFields returns the field names of GroupTargets.
func GroupTargetFields() []string {
	out := make([]string, len(GroupTargets))
	for i, t := range GroupTargets {
		out[i] = t.Field
	}
	return out
}
