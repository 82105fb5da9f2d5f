// -----------------------------------------------------------------------
// Last Modified: Wednesday, 29th July 2026
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/queuecore/internal/common"
	"github.com/ternarybob/queuecore/internal/kv"
	"github.com/ternarybob/queuecore/internal/queuecore"
	badgerstorage "github.com/ternarybob/queuecore/internal/storage/badger"
)

var (
	configFile  = flag.String("config", "", "Configuration file path")
	showVersion = flag.Bool("version", false, "Print version information")
)

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()

	if *showVersion {
		fmt.Printf("queuecore-sweeper version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Auto-discover config file if not specified, falling back to a
	// queuecore.toml in the working directory.
	path := *configFile
	if path == "" {
		if _, err := os.Stat("queuecore.toml"); err == nil {
			path = "queuecore.toml"
		}
	}

	config, err := common.LoadFromFile(path)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Err(err).Str("path", path).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.SetupLogger(config)
	defer common.Stop()

	logger.Info().
		Str("environment", config.Environment).
		Strs("prefixes", config.Queue.Prefixes).
		Str("sweep_interval", config.Queue.SweepInterval).
		Msg("Starting queuecore sweeper")

	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open Badger storage")
	}
	defer db.Close()

	store := kv.NewStore(db.DB(), logger)

	c := cron.New(cron.WithSeconds())
	schedule := sweepScheduleFromInterval(config.SweepIntervalOrDefault())

	_, err = c.AddFunc(schedule, func() {
		sweepOnce(store, logger, config.Queue.Prefixes)
	})
	if err != nil {
		logger.Fatal().Err(err).Str("schedule", schedule).Msg("Failed to register sweep job")
	}

	c.Start()
	logger.Info().Str("schedule", schedule).Msg("Sweep job registered")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, stopping sweeper")
	ctx := c.Stop()
	<-ctx.Done()
	logger.Info().Msg("Sweeper stopped")
}

// sweepScheduleFromInterval converts a poll interval into a robfig/cron
// seconds-resolution expression ("@every" is simpler but doesn't compose
// with WithSeconds() the way a literal "*/N * * * * *" does for sub-minute
// intervals). The interval is truncated to whole seconds with a minimum of
// one; intervals of a minute or longer run once a minute.
func sweepScheduleFromInterval(interval time.Duration) string {
	seconds := int(interval.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	if seconds >= 60 {
		return "0 * * * * *"
	}
	return fmt.Sprintf("*/%d * * * * *", seconds)
}

// sweepOnce promotes due delayed jobs for every configured queue prefix
// (spec.md §4.7 step 2), standing in for the worker-side polling loop the
// spec's Non-goals exclude. Each prefix sweeps on its own panic-protected
// goroutine so one queue's failure can't block another's.
func sweepOnce(store *kv.Store, logger arbor.ILogger, prefixes []string) {
	var wg sync.WaitGroup
	for _, prefix := range prefixes {
		prefix := prefix
		wg.Add(1)
		common.SafeGo(logger, "sweep:"+prefix, func() {
			defer wg.Done()
			sweepPrefix(store, logger, prefix)
		})
	}
	wg.Wait()
}

func sweepPrefix(store *kv.Store, logger arbor.ILogger, prefix string) {
	keys := queuecore.NewKeys(prefix)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	now := time.Now().UnixMilli()
	err := store.Update(ctx, func(tx *kv.Tx) error {
		_, err := queuecore.PromoteDelayed(tx, logger, keys, now)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("prefix", prefix).Msg("delayed-job sweep failed")
	}
}
