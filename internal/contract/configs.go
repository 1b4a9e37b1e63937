package contract

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/huangsam/strata/schema"
	"github.com/spf13/cast"
	"go.uber.org/zap/zapcore"
)

// Default values for configuration.
const (
	DefaultPrecision = 1
	DefaultChain     = "L1:quality,L2:gapfill"
	DefaultLogLevel  = "warn"
)

// DefaultWorkers is the default number of concurrent workers to use.
var DefaultWorkers = runtime.GOMAXPROCS(0)

// Config holds the runtime configuration for a pipeline run.
// This struct remains the "final, validated" config.
type Config struct {
	DataDir      string
	OutDir       string
	QualityRules string
	GapFillRules string

	// Levels is the processing chain. The first entry is always the raw level.
	Levels  []schema.LevelSpec
	Loggers []string // only process these loggers (empty = all)

	Workers    int
	Format     schema.LevelFormat
	Output     schema.OutputMode
	OutputFile string
	Precision  int
	Width      int // Terminal width override (0 = auto-detect)
	UseColors  bool
	LogLevel   zapcore.Level

	CacheBackend   schema.DatabaseBackend
	CacheDBConnect string // Please use env var as this is plaintext

	RunBackend   schema.DatabaseBackend
	RunDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	DataDir        string `mapstructure:"data-dir"`
	OutDir         string `mapstructure:"out-dir"`
	QualityRules   string `mapstructure:"quality-rules"`
	GapFillRules   string `mapstructure:"gapfill-rules"`
	Loggers        string `mapstructure:"loggers"`
	Workers        int    `mapstructure:"workers"`
	Format         string `mapstructure:"format"`
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Precision      int    `mapstructure:"precision"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	LogLevel       string `mapstructure:"log-level"`
	CacheBackend   string `mapstructure:"cache-backend"`
	CacheDBConnect string `mapstructure:"cache-db-connect"`
	RunBackend     string `mapstructure:"run-backend"`
	RunDBConnect   string `mapstructure:"run-db-connect"`

	// Levels is "L1:quality,L2:gapfill" from a flag or env var, or a list of
	// {name, stage} mappings from the config file.
	Levels any `mapstructure:"levels"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Levels = slices.Clone(c.Levels)
	clone.Loggers = slices.Clone(c.Loggers)
	return &clone
}

// WantsLogger reports whether a logger passes the --loggers filter.
func (c *Config) WantsLogger(logger string) bool {
	return len(c.Loggers) == 0 || slices.Contains(c.Loggers, logger)
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processLevels(cfg, input); err != nil {
		return err
	}
	return resolvePaths(cfg, input)
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates cache and run backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.SQLiteBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- Run Backend Validation ---
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		return nil
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return fmt.Errorf("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	if err := ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect); err != nil {
		return err
	}

	// Cache and runs must not share a SQLite file
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.RunBackend == schema.SQLiteBackend {
		cacheDBPath := cfg.CacheDBConnect
		if cacheDBPath == "" {
			cacheDBPath = GetCacheDBFilePath()
		}
		runDBPath := cfg.RunDBConnect
		if runDBPath == "" {
			runDBPath = GetRunDBFilePath()
		}
		if cacheDBPath == runDBPath {
			return fmt.Errorf("cache and run storage must use different SQLite database files. Both resolve to %q", cacheDBPath)
		}
	}
	return nil
}

// validateSimpleInputs processes and validates all non-path related fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width

	colors, err := ParseBoolString(input.Color)
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	if input.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0 (received %d)", input.Workers)
	}
	cfg.Workers = input.Workers

	if input.Precision < 1 || input.Precision > 2 {
		return fmt.Errorf("precision must be 1 or 2 (received %d)", input.Precision)
	}
	cfg.Precision = input.Precision

	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json", input.Output)
	}

	cfg.Format = schema.LevelFormat(strings.ToLower(input.Format))
	if cfg.Format == "" {
		cfg.Format = schema.CSVFormat
	}
	if _, ok := schema.ValidLevelFormats[cfg.Format]; !ok {
		return fmt.Errorf("invalid level format '%s'. must be csv, parquet", input.Format)
	}

	logLevel := input.LogLevel
	if logLevel == "" {
		logLevel = DefaultLogLevel
	}
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level value: %w", err)
	}
	cfg.LogLevel = level

	cfg.Loggers = nil
	for p := range strings.SplitSeq(input.Loggers, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cfg.Loggers = append(cfg.Loggers, trimmed)
		}
	}
	return nil
}

// processLevels resolves the level chain from its flag or config file form.
func processLevels(cfg *Config, input *ConfigRawInput) error {
	var specs []schema.LevelSpec
	switch v := input.Levels.(type) {
	case nil:
		specs = nil
	case string:
		parsed, err := ParseLevelChain(v)
		if err != nil {
			return err
		}
		specs = parsed
	case []schema.LevelSpec:
		specs = v
	case []any:
		for i, item := range v {
			m, err := cast.ToStringMapE(item)
			if err != nil {
				return fmt.Errorf("levels[%d]: expected a mapping with name and stage: %w", i, err)
			}
			specs = append(specs, schema.LevelSpec{
				Name:  strings.TrimSpace(cast.ToString(m["name"])),
				Stage: schema.StageKind(strings.ToLower(strings.TrimSpace(cast.ToString(m["stage"])))),
			})
		}
	default:
		return fmt.Errorf("levels: unsupported value of type %T", input.Levels)
	}
	if len(specs) == 0 {
		parsed, err := ParseLevelChain(DefaultChain)
		if err != nil {
			return err
		}
		specs = parsed
	}

	chain, err := NormalizeChain(specs)
	if err != nil {
		return err
	}
	cfg.Levels = chain
	return nil
}

// ParseLevelChain parses "L1:quality,L2:gapfill" into level specs.
// The raw level is implicit and must not be listed.
func ParseLevelChain(s string) ([]schema.LevelSpec, error) {
	var specs []schema.LevelSpec
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, stage, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid level '%s', expected 'name:stage'", part)
		}
		specs = append(specs, schema.LevelSpec{
			Name:  strings.TrimSpace(name),
			Stage: schema.StageKind(strings.ToLower(strings.TrimSpace(stage))),
		})
	}
	return specs, nil
}

// FormatLevelChain renders the derived levels of a chain in ParseLevelChain form.
func FormatLevelChain(levels []schema.LevelSpec) string {
	parts := make([]string, 0, len(levels))
	for _, l := range levels {
		if l.Stage == schema.RawStage {
			continue
		}
		parts = append(parts, l.Name+":"+string(l.Stage))
	}
	return strings.Join(parts, ",")
}

// NormalizeChain validates derived level specs and prepends the raw level.
// A leading raw entry is accepted and dropped.
func NormalizeChain(specs []schema.LevelSpec) ([]schema.LevelSpec, error) {
	if len(specs) > 0 && specs[0].Name == schema.RawLevel {
		specs = specs[1:]
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("levels must name at least one derived level")
	}
	chain := []schema.LevelSpec{{Name: schema.RawLevel, Stage: schema.RawStage}}
	seen := map[string]struct{}{schema.RawLevel: {}}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("level name must not be empty")
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("duplicate level '%s'", s.Name)
		}
		if _, ok := schema.ValidStageKinds[s.Stage]; !ok {
			return nil, fmt.Errorf("invalid stage '%s' for level '%s'. must be quality, gapfill", s.Stage, s.Name)
		}
		seen[s.Name] = struct{}{}
		chain = append(chain, s)
	}
	return chain, nil
}

// resolvePaths turns every configured path into an absolute, clean path.
func resolvePaths(cfg *Config, input *ConfigRawInput) error {
	resolve := func(p string) (string, error) {
		if p == "" {
			return "", nil
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return "", err
		}
		return filepath.Clean(abs), nil
	}
	var err error
	if cfg.DataDir, err = resolve(input.DataDir); err != nil {
		return err
	}
	if cfg.OutDir, err = resolve(input.OutDir); err != nil {
		return err
	}
	if cfg.QualityRules, err = resolve(input.QualityRules); err != nil {
		return err
	}
	if cfg.GapFillRules, err = resolve(input.GapFillRules); err != nil {
		return err
	}
	return nil
}

// RevalidateLevels replaces the chain of an already validated config with
// one given as "L1:quality,L2:gapfill". An empty string keeps the chain.
func RevalidateLevels(cfg *Config, levels string) error {
	if strings.TrimSpace(levels) == "" {
		return nil
	}
	specs, err := ParseLevelChain(levels)
	if err != nil {
		return err
	}
	chain, err := NormalizeChain(specs)
	if err != nil {
		return err
	}
	cfg.Levels = chain
	return nil
}

// RevalidateLoggers replaces the --loggers filter from a comma separated list.
func RevalidateLoggers(cfg *Config, loggers string) {
	if strings.TrimSpace(loggers) == "" {
		return
	}
	cfg.Loggers = nil
	for p := range strings.SplitSeq(loggers, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			cfg.Loggers = append(cfg.Loggers, trimmed)
		}
	}
}
