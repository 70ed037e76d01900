package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"videomoderation/internal/conf"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name = "videomoderation"
	// Version is the version of the compiled software.
	Version string

	flagconf string
	logLevel string

	bc          *conf.Bootstrap
	logger      log.Logger
	confCleanup = func() {}
)

var rootCmd = &cobra.Command{
	Use:   Name,
	Short: "Sample video frames, classify them and aggregate a moderation verdict",
	Long: `videomoderation samples every Nth frame of a video, sends each sampled frame
to a frame classifier and reduces the per-frame verdicts to one SAFE/UNSAFE
verdict per video.

Example:
  videomoderation analyze --config configs/config.yaml clip.mp4
  videomoderation dataset --violence data/violence --nonviolence data/nonviolence --out frames`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		bc, confCleanup, err = conf.Load(flagconf)
		if err != nil {
			return err
		}
		level := bc.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		logger = newLogger(level)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		confCleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagconf, "config", "configs/config.yaml", "config path, eg: --config config.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// newLogger writes to stderr so stdout carries only verdict JSON.
func newLogger(level string) log.Logger {
	l := log.With(log.NewStdLogger(os.Stderr),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", Name,
		"service.version", Version,
	)
	return log.NewFilter(l, log.FilterLevel(log.ParseLevel(level)))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		os.Exit(1)
	}
}
