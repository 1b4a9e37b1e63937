package contract

import (
	"path/filepath"
	"testing"

	"github.com/huangsam/strata/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func validInput() *ConfigRawInput {
	return &ConfigRawInput{
		DataDir:   "data",
		OutDir:    "out",
		Workers:   4,
		Precision: 1,
		Output:    "text",
		Color:     "yes",
	}
}

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ConfigRawInput)
		expectError string
	}{
		{name: "valid minimal config", mutate: func(*ConfigRawInput) {}},
		{name: "zero workers", mutate: func(in *ConfigRawInput) { in.Workers = 0 }, expectError: "workers must be greater than 0"},
		{name: "bad precision", mutate: func(in *ConfigRawInput) { in.Precision = 3 }, expectError: "precision must be 1 or 2"},
		{name: "bad output", mutate: func(in *ConfigRawInput) { in.Output = "xml" }, expectError: "invalid output format"},
		{name: "bad format", mutate: func(in *ConfigRawInput) { in.Format = "hdf5" }, expectError: "invalid level format"},
		{name: "bad color", mutate: func(in *ConfigRawInput) { in.Color = "maybe" }, expectError: "invalid --color value"},
		{name: "bad log level", mutate: func(in *ConfigRawInput) { in.LogLevel = "loud" }, expectError: "invalid --log-level value"},
		{name: "bad stage", mutate: func(in *ConfigRawInput) { in.Levels = "L1:smooth" }, expectError: "invalid stage"},
		{name: "duplicate level", mutate: func(in *ConfigRawInput) { in.Levels = "L1:quality,L1:gapfill" }, expectError: "duplicate level"},
		{name: "missing stage", mutate: func(in *ConfigRawInput) { in.Levels = "L1" }, expectError: "expected 'name:stage'"},
		{name: "bad cache backend", mutate: func(in *ConfigRawInput) { in.CacheBackend = "redis" }, expectError: "invalid cache backend"},
		{
			name: "mysql without connection",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = "mysql"
			},
			expectError: "db-connect is required",
		},
		{
			name: "same sqlite file for cache and runs",
			mutate: func(in *ConfigRawInput) {
				in.CacheBackend = "sqlite"
				in.CacheDBConnect = "/tmp/strata.db"
				in.RunBackend = "sqlite"
				in.RunDBConnect = "/tmp/strata.db"
			},
			expectError: "different SQLite database files",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(input)
			cfg := &Config{}
			err := ProcessAndValidate(cfg, input)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestProcessAndValidateDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, validInput()))

	assert.Equal(t, []schema.LevelSpec{
		{Name: schema.RawLevel, Stage: schema.RawStage},
		{Name: "L1", Stage: schema.QualityStage},
		{Name: "L2", Stage: schema.GapFillStage},
	}, cfg.Levels)
	assert.Equal(t, schema.CSVFormat, cfg.Format)
	assert.Equal(t, schema.TextOut, cfg.Output)
	assert.Equal(t, schema.SQLiteBackend, cfg.CacheBackend)
	assert.Empty(t, cfg.RunBackend)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
	assert.True(t, cfg.UseColors)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
	assert.True(t, filepath.IsAbs(cfg.OutDir))
	assert.Empty(t, cfg.QualityRules)
	assert.True(t, cfg.WantsLogger("anything"))
}

func TestProcessLevelsFromConfigFile(t *testing.T) {
	input := validInput()
	input.Levels = []any{
		map[string]any{"name": "raw", "stage": "raw"},
		map[string]any{"name": "QC", "stage": "Quality"},
		map[string]any{"name": "Filled", "stage": "gapfill"},
		map[string]any{"name": "QC2", "stage": "quality"},
	}
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, "QC:quality,Filled:gapfill,QC2:quality", FormatLevelChain(cfg.Levels))

	input.Levels = 42
	assert.Error(t, ProcessAndValidate(&Config{}, input))
}

func TestLoggerFilter(t *testing.T) {
	input := validInput()
	input.Loggers = " CR1000, ,CR3000 "
	cfg := &Config{}
	require.NoError(t, ProcessAndValidate(cfg, input))
	assert.Equal(t, []string{"CR1000", "CR3000"}, cfg.Loggers)
	assert.True(t, cfg.WantsLogger("CR3000"))
	assert.False(t, cfg.WantsLogger("CR6"))

	clone := cfg.Clone()
	clone.Loggers[0] = "changed"
	assert.Equal(t, "CR1000", cfg.Loggers[0])
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		backend schema.DatabaseBackend
		conn    string
		wantErr bool
	}{
		{"sqlite ignores connection", schema.SQLiteBackend, "", false},
		{"none ignores connection", schema.NoneBackend, "", false},
		{"valid mysql", schema.MySQLBackend, "user:pass@tcp(localhost:3306)/strata", false},
		{"mysql without tcp", schema.MySQLBackend, "user:pass@localhost/strata", true},
		{"valid postgres", schema.PostgreSQLBackend, "host=localhost user=u password=p dbname=strata", false},
		{"postgres without dbname", schema.PostgreSQLBackend, "host=localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDatabaseConnectionString(tt.backend, tt.conn)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalizeChain(t *testing.T) {
	_, err := NormalizeChain(nil)
	assert.Error(t, err)

	_, err = NormalizeChain([]schema.LevelSpec{{Name: "raw", Stage: schema.RawStage}})
	assert.Error(t, err, "raw alone has no derived levels")

	_, err = NormalizeChain([]schema.LevelSpec{{Name: "L1", Stage: schema.RawStage}})
	assert.Error(t, err, "raw is not a derivable stage")

	chain, err := NormalizeChain([]schema.LevelSpec{{Name: "L1", Stage: schema.GapFillStage}})
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestRevalidateLevels(t *testing.T) {
	cfg := &Config{Levels: []schema.LevelSpec{{Name: schema.RawLevel, Stage: schema.RawStage}, {Name: "L1", Stage: schema.QualityStage}}}

	require.NoError(t, RevalidateLevels(cfg, " "))
	assert.Len(t, cfg.Levels, 2, "empty input keeps the chain")

	require.NoError(t, RevalidateLevels(cfg, "L1:quality,L2:gapfill,L3:quality"))
	assert.Equal(t, "L1:quality,L2:gapfill,L3:quality", FormatLevelChain(cfg.Levels))
	assert.Equal(t, schema.RawLevel, cfg.Levels[0].Name)

	assert.Error(t, RevalidateLevels(cfg, "L1"))
	assert.Error(t, RevalidateLevels(cfg, "L1:smooth"))
	assert.Len(t, cfg.Levels, 4, "a failed revalidation leaves the chain alone")
}

func TestRevalidateLoggers(t *testing.T) {
	cfg := &Config{Loggers: []string{"CR1000"}}
	RevalidateLoggers(cfg, "")
	assert.Equal(t, []string{"CR1000"}, cfg.Loggers)

	RevalidateLoggers(cfg, "CR3000, ,CR6")
	assert.Equal(t, []string{"CR3000", "CR6"}, cfg.Loggers)
}
