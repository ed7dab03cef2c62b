// Package main is the entry point for the systemd-swap daemon. It wires
// the CLI surface (start, stop, status, compression, autoconfig) to the
// supervisor and the read-only query paths.
package main

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/systemd-swap/swapd/daemon/cmd"
	"github.com/systemd-swap/swapd/daemon/logger"
)

// Version is the application version, set at build time via ldflags.
var Version = "dev"

var cli struct {
	LogsDir    string `default:"/var/log" help:"directory to store logs"`
	Debug      bool   `default:"false" env:"DEBUG" help:"enable debug mode with stdout logging"`
	RuntimeDir string `default:"" env:"RUNTIME_DIR" help:"override the runtime state directory (default: /run/systemd-swap)"`

	Start       cmd.Start       `cmd:"" help:"run as daemon; blocks until shutdown"`
	Stop        cmd.Stop        `cmd:"" help:"signal the running daemon to exit"`
	Status      cmd.Status      `cmd:"" help:"print swap status to stdout"`
	Compression cmd.Compression `cmd:"" help:"list compressors supported by the kernel"`
	Autoconfig  cmd.Autoconfig  `cmd:"" help:"print the mode and parameters auto would choose"`
}

// cleanupOldLogs removes old rotated log files from previous versions.
// lumberjack's MaxBackups only prevents new backups, it doesn't clean up
// existing ones from before the setting was changed.
func cleanupOldLogs(logsDir, baseName string) {
	pattern := filepath.Join(logsDir, baseName+"-*.log")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return
	}
	for _, f := range files {
		_ = os.Remove(f)
	}
}

func main() {
	ctx := kong.Parse(&cli)

	// Only the daemon logs to a rotating file; the query commands print
	// their result to stdout and keep log noise on stderr.
	isDaemon := ctx.Command() == "start"

	if cli.Debug {
		log.SetOutput(os.Stdout)
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		logger.SetLevel(logger.LevelDebug)
	} else if isDaemon {
		cleanupOldLogs(cli.LogsDir, "systemd-swap")

		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(cli.LogsDir, "systemd-swap.log"),
			MaxSize:    5, // 5 MB max file size
			MaxBackups: 1, // Keep only 1 backup file
			MaxAge:     1, // Delete backups older than 1 day
			Compress:   false,
		}
		log.SetOutput(io.MultiWriter(fileLogger, os.Stdout))
	} else {
		log.SetOutput(os.Stderr)
	}

	env := &cmd.Env{
		Version:    Version,
		RuntimeDir: cli.RuntimeDir,
	}

	if err := ctx.Run(env); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}
