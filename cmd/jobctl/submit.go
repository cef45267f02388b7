package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mtr002/Job-Client/internal/interfaces"
	"github.com/mtr002/Job-Client/internal/jobs"
	"github.com/mtr002/Job-Client/internal/protocol"
)

var (
	submitID      int64
	submitName    string
	submitType    string
	submitPayload string
	submitSet     []string
	submitWait    bool
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a job and optionally wait for its final status",
	Example: `  jobctl submit --id 42 --name etl-batch --type slow --set duration=5s --wait
  jobctl --transport grpc submit --id 7 --name nightly --type echo --payload hello`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().Int64Var(&submitID, "id", 0, "job id (positive, unique on the master)")
	submitCmd.Flags().StringVar(&submitName, "name", "", "job name")
	submitCmd.Flags().StringVar(&submitType, "type", "echo", "job type (echo, uppercase, slow, fail)")
	submitCmd.Flags().StringVar(&submitPayload, "payload", "", "job payload")
	submitCmd.Flags().StringArrayVar(&submitSet, "set", nil, "extra config entry as key=value (repeatable)")
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "wait for the job to end and print its status")
	_ = submitCmd.MarkFlagRequired("id")
	_ = submitCmd.MarkFlagRequired("name")
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	jobConfig, err := parseSettings(submitSet)
	if err != nil {
		return err
	}
	jobConfig["type"] = submitType
	if submitPayload != "" {
		jobConfig["payload"] = submitPayload
	}

	desc, err := interfaces.NewJobDescription(submitID, submitName, jobConfig)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Client.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Client.RequestTimeout)
		defer cancel()
	}

	channel, closeChannel, err := newChannel(cfg)
	if err != nil {
		return err
	}
	defer closeChannel()

	return submitJob(ctx, channel, desc, submitWait, cmd.OutOrStdout())
}

// submitJob submits desc and, when wait is set, prints its final status.
// A job that ended FAILED or CANCELED is reported as exit status 2.
func submitJob(ctx context.Context, channel interfaces.RequestChannel, desc *interfaces.JobDescription, wait bool, out io.Writer) error {
	proxy := jobs.NewProxy(channel, desc)
	if err := proxy.Submit(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "submitted job %d (%s)\n", proxy.JobID(), proxy.Name())
	if !wait {
		return nil
	}

	result, err := proxy.AwaitResult(ctx)
	if err != nil {
		return err
	}
	if result.FailureReason != "" {
		fmt.Fprintf(out, "job %d ended with state %s: %s\n", result.JobID, result.Status, result.FailureReason)
	} else {
		fmt.Fprintf(out, "job %d ended with state %s\n", result.JobID, result.Status)
	}

	switch result.Status {
	case protocol.StatusFailed, protocol.StatusCanceled:
		return &exitError{code: 2}
	}
	return nil
}

// parseSettings turns key=value pairs into a config map.
func parseSettings(pairs []string) (map[string]string, error) {
	settings := make(map[string]string, len(pairs)+2)
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", pair)
		}
		settings[key] = value
	}
	return settings, nil
}
