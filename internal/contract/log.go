package contract

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger installs the global zap logger at the given level. Console
// encoding on stderr keeps it out of the way of stdout output.
func InitLogger(level zapcore.Level) error {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.Level.SetLevel(level)
	zapCfg.DisableStacktrace = true

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "contract: build logger")
	}
	zap.ReplaceGlobals(logger)
	return nil
}

// ProfileConfig holds profiling settings.
type ProfileConfig struct {
	Enabled bool
	Prefix  string
}

// ProcessProfilingConfig enables profiling when a file prefix is given.
func ProcessProfilingConfig(profile *ProfileConfig, profilePrefix string) error {
	if profilePrefix != "" {
		profile.Enabled = true
		profile.Prefix = profilePrefix
	}
	return nil
}
