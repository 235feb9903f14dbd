package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the steering daemon.",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := ReadConf(confPath)
		if err != nil {
			return err
		}
		slog.Debug("loaded the configuration", "path", confPath, "mode", conf.Mode, "apps", len(conf.Apps))

		return run(conf)
	},
}

func run(conf *Config) error {
	if err := writePidFile(conf.PidPath); err != nil {
		return err
	}
	defer removePidFile(conf.PidPath)

	d := newDaemon(conf, confPath)
	if err := d.setup(); err != nil {
		return err
	}
	defer d.cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigChan)

	done := make(chan struct{})
	wait := d.run(done)

	slog.Info("steerd running", "mode", conf.Mode, "pid", os.Getpid())

	for sig := range sigChan {
		if sig == syscall.SIGHUP {
			slog.Info("reloading the configuration")
			if _, err := d.watcher.Reload(); err != nil {
				slog.Error("error reloading the configuration", "err", err)
			}
			continue
		}

		slog.Info("shutting down", "signal", sig)
		break
	}

	close(done)
	wait()

	return nil
}

func writePidFile(path string) error {
	if path == "" {
		return nil
	}

	if raw, err := os.ReadFile(path); err == nil {
		slog.Warn("overwriting an existing pid file", "path", path, "pid", string(raw))
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return fmt.Errorf("error writing the pid file: %w", err)
	}

	return nil
}

func removePidFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("error removing the pid file", "path", path, "err", err)
	}
}
