// main is the entry point for the strata CLI.
package main

import (
	"github.com/huangsam/strata/cmd"
	"github.com/huangsam/strata/internal/contract"
	"github.com/huangsam/strata/internal/iocache"
	"go.uber.org/zap"
)

func main() {
	err := cmd.Execute()

	if perr := cmd.StopProfiling(); perr != nil {
		contract.LogWarn("Failed to stop profiling", perr)
	}
	_ = zap.L().Sync()
	iocache.CloseStores()

	if err != nil {
		contract.LogFatal("strata failed", err)
	}
}
