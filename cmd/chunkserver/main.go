// Command chunkserver runs a single storage-engine process: it loads the
// mfshdd.cfg-style disk list and the HDD_* settings file, opens every listed
// disk, starts the background thread roster (§5), and blocks until told to
// stop, writing a .chunkdb snapshot per writable disk on the way out. This
// is the process harness around package chunkserver's Store; it intentionally
// carries no subcommands or remote-admin surface, unlike the teacher's
// cobra-based siac.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/moosefs/chunkserver/chunkserver"
	"github.com/moosefs/chunkserver/config"
	"github.com/moosefs/chunkserver/persist"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "chunkserver:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		workDir      = flag.String("workdir", ".", "directory holding mfshdd.cfg, mfschunkserver.cfg and runtime state")
		hddCfgPath   = flag.String("hddcfg", "", "path to the mfshdd.cfg-style disk list (default: <workdir>/mfshdd.cfg)")
		settingsPath = flag.String("cfg", "", "path to the HDD_*/ALLOW_* settings file (default: <workdir>/mfschunkserver.cfg)")
	)
	flag.Parse()

	if *hddCfgPath == "" {
		*hddCfgPath = filepath.Join(*workDir, "mfshdd.cfg")
	}
	if *settingsPath == "" {
		*settingsPath = filepath.Join(*workDir, "mfschunkserver.cfg")
	}

	logger, err := persist.NewLogger(filepath.Join(*workDir, "chunkserver.log"))
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	defer logger.Close()

	settings, err := loadSettings(*settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	instanceID, err := chunkserver.LoadOrCreateInstanceID(*workDir)
	if err != nil {
		return fmt.Errorf("loading instance id: %w", err)
	}

	disks, err := config.LoadDiskConfig(*hddCfgPath)
	if err != nil {
		return fmt.Errorf("loading disk config: %w", err)
	}

	store := chunkserver.New(logger, settings, instanceID)
	if err := store.ApplyDiskConfig(disks); err != nil {
		return fmt.Errorf("opening disks: %w", err)
	}
	logger.Printf("opened %d disk(s) from %s", len(disks), *hddCfgPath)

	if err := store.Start(); err != nil {
		return fmt.Errorf("starting background threads: %w", err)
	}
	logger.Println("chunkserver started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for s := range sig {
		if s == syscall.SIGHUP {
			disks, err := config.LoadDiskConfig(*hddCfgPath)
			if err != nil {
				logger.Printf("SIGHUP: reloading disk config failed: %v", err)
				continue
			}
			if err := store.ApplyDiskConfig(disks); err != nil {
				logger.Printf("SIGHUP: applying disk config failed: %v", err)
				continue
			}
			logger.Println("SIGHUP: disk config reloaded")
			continue
		}
		break
	}

	logger.Println("chunkserver stopping")
	return store.Shutdown()
}

func loadSettings(path string) (config.Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config.DefaultSettings(), nil
		}
		return config.Settings{}, err
	}
	defer f.Close()
	return config.ParseSettings(f)
}
