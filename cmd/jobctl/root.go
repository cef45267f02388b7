package main

import (
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mtr002/Job-Client/internal/config"
	"github.com/mtr002/Job-Client/internal/grpc"
	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/logger"
	natschannel "github.com/mtr002/Job-Client/internal/nats"
)

var (
	cfgFile   string
	transport string

	cfg *config.Config
)

// exitError ends the process with code without printing anything more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:           "jobctl",
	Short:         "Submit jobs to the cluster master and wait for them",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init("jobctl")

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		if transport != "" {
			loaded.Client.Transport = transport
			if err := loaded.Validate(); err != nil {
				return err
			}
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "transport to the master (nats or grpc)")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// newChannel connects to the master over the configured transport.
func newChannel(cfg *config.Config) (interfaces.RequestChannel, func(), error) {
	switch cfg.Client.Transport {
	case config.TransportGRPC:
		channel, err := grpc.NewChannel(cfg.GRPC.Addr)
		if err != nil {
			return nil, nil, err
		}
		return channel, func() { _ = channel.Close() }, nil
	default:
		channel, err := natschannel.NewChannel(cfg.NATS.URL, cfg.NATS.Subject, nats.Name("jobctl"))
		if err != nil {
			return nil, nil, err
		}
		return channel, channel.Close, nil
	}
}
