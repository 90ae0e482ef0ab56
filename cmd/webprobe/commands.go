package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/webprobe"
)

var version = "dev"

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
}

// buildRoot creates the root command and wires subcommands.
func buildRoot() *cobra.Command {
	flags := &GlobalFlags{}

	root := &cobra.Command{
		Use:   "webprobe",
		Short: "Periodic HTTP availability prober with durable metrics",
		Long: "webprobe probes a fixed set of HTTP endpoints at per-target intervals,\n" +
			"classifies each response (optionally against a content pattern), and\n" +
			"appends an availability/latency record to a metric store.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "webprobe.toml", "path to TOML config file")

	root.AddCommand(
		createRunCommand(flags),
		createValidateCommand(flags),
		createVersionCommand(),
	)
	return root
}

func createRunCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start probing all configured targets until interrupted",
		RunE: func(_ *cobra.Command, _ []string) error {
			c, err := webprobe.LoadConfig(flags.ConfigPath)
			if err != nil {
				return err
			}
			eng, err := webprobe.New(c)
			if err != nil {
				return err
			}
			if err := eng.Start(); err != nil {
				return err
			}
			log := eng.Logger()
			log.Info("webprobe started", "targets", len(c.Targets), "config", flags.ConfigPath)

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			s := <-sig
			log.Info("signal received, shutting down", "signal", s.String())

			eng.Shutdown()
			total := eng.Totals()
			log.Info("run summary",
				"ticks", total.Ticks,
				"skips", total.Skips,
				"channel_drops", total.ChannelDrops,
				"persist_drops", total.PersistDrops,
			)
			return nil
		},
	}
}

func createValidateCommand(flags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := webprobe.LoadConfig(flags.ConfigPath)
			if err != nil {
				return err
			}
			cmd.Printf("config ok: %d targets\n", len(c.Targets))
			return nil
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the webprobe version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("webprobe " + version)
		},
	}
}
