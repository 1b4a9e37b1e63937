package schema

// Custom string types for type safety.
type (
	// OutputMode represents the format of the console output.
	OutputMode string

	// LevelFormat represents the on-disk format of a data level.
	LevelFormat string

	// StageKind represents the kind of processing applied by a level transition.
	StageKind string

	// FunctionKind represents the family a registered function belongs to.
	FunctionKind string

	// VariableStatus summarizes the outcome for one variable at one level.
	VariableStatus string

	// DatabaseBackend represents the database backend for caching and run tracking.
	DatabaseBackend string
)

// RawLevel is the name bound to the immutable input table of every chain.
const RawLevel = "raw"

// FlagSuffix is appended to a variable name to name its flag column.
const FlagSuffix = "_flag"

// MaxRulesPerVariable is the number of distinct flag slots available in an int64 flag column.
const MaxRulesPerVariable = 63

// All output modes supported.
const (
	CSVOut  OutputMode = "csv"
	TextOut OutputMode = "text" // default
	JSONOut OutputMode = "json"
)

// All level formats supported.
const (
	CSVFormat     LevelFormat = "csv" // default
	ParquetFormat LevelFormat = "parquet"
)

// All stage kinds supported.
const (
	QualityStage StageKind = "quality"
	GapFillStage StageKind = "gapfill"
	RawStage     StageKind = "raw"
)

// All function kinds supported.
const (
	QualityFunc FunctionKind = "quality"
	FillFunc    FunctionKind = "fill"
)

// All variable statuses reported.
const (
	CleanStatus   VariableStatus = "clean"
	FlaggedStatus VariableStatus = "flagged"
	GapsStatus    VariableStatus = "gaps"
	ErrorStatus   VariableStatus = "error"
)

// All database backends supported.
const (
	SQLiteBackend     DatabaseBackend = "sqlite" // default
	MySQLBackend      DatabaseBackend = "mysql"
	PostgreSQLBackend DatabaseBackend = "postgresql"
	NoneBackend       DatabaseBackend = "none"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	CSVOut:  {},
	TextOut: {},
	JSONOut: {},
}

// ValidLevelFormats lists all valid level formats.
var ValidLevelFormats = map[LevelFormat]struct{}{
	CSVFormat:     {},
	ParquetFormat: {},
}

// ValidStageKinds lists the stage kinds a derived level may use.
var ValidStageKinds = map[StageKind]struct{}{
	QualityStage: {},
	GapFillStage: {},
}

// ValidDatabaseBackends lists all valid database backends.
var ValidDatabaseBackends = map[DatabaseBackend]struct{}{
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}
