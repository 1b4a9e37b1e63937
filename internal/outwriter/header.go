package outwriter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/huangsam/strata/internal/contract"
)

// LogRunHeader prints what a run is about to process. It goes to stderr so
// that JSON and CSV on stdout stay parseable.
func LogRunHeader(cfg *contract.Config) {
	dataName := filepath.Base(cfg.DataDir)
	if dataName == "" || dataName == "." {
		dataName = "current"
	}

	// Line 1: the data directory and the chain
	_, _ = fmt.Fprintf(os.Stderr, "🔎 Data: %s (Chain: %s)\n", dataName, contract.FormatLevelChain(cfg.Levels))

	// Line 2: where levels land
	if cfg.OutDir != "" {
		_, _ = fmt.Fprintf(os.Stderr, "📂 Levels: %s (%s)\n", cfg.OutDir, cfg.Format)
	}
}
