// Command gateway runs the secure RTSP snapshot tunnel gateway.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/similie/hyphen-rtsp-tunnel/internal/config"
	"github.com/similie/hyphen-rtsp-tunnel/internal/gateway"
	"github.com/similie/hyphen-rtsp-tunnel/internal/logging"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "gateway",
		Short: "Secure RTSP snapshot tunnel gateway",
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file")

	root.AddCommand(newRunCmd(&cfgFile))
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the gateway version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func newRunCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the gateway until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(*cfgFile)
		},
	}
}

func run(cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var logOutput *logging.RotatingWriter
	if cfg.LogFile != "" {
		logOutput, err = logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logOutput.Close()
		logging.Init(cfg.LogFormat, cfg.LogLevel, logOutput)
	} else {
		logging.Init(cfg.LogFormat, cfg.LogLevel, nil)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return gw.Run(ctx)
}
