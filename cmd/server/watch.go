// cmd/server/watch.go
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plc-monitor/internal/config"
	"plc-monitor/internal/utils"
	"plc-monitor/pkg/mcclient"
)

type watchOptions struct {
	host     string
	port     int
	address  string
	value    uint16
	mask     uint16
	timeout  time.Duration
	interval time.Duration
	logLevel string
}

func watchCmd() *cobra.Command {
	opts := watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Wait once for a word to reach a value",
		Long: `Connect to the controller, watch one word and exit as soon as its
masked value changes to the target. Exits 0 on a match and 1 on timeout.`,
		Example: `  plc-monitor watch --host 192.168.3.39 --address D100 --value 1
  plc-monitor watch --host plc --address M20 --value 1 --mask 0x0001 --timeout 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, &opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.host, "host", "127.0.0.1", "Controller host")
	f.IntVar(&opts.port, "port", 5000, "Controller MC protocol port")
	f.StringVarP(&opts.address, "address", "a", "", "Word address, e.g. D100")
	f.Uint16VarP(&opts.value, "value", "v", 0, "Target value")
	f.Uint16Var(&opts.mask, "mask", mcclient.DefaultMask, "Bits compared")
	f.DurationVarP(&opts.timeout, "timeout", "t", 0, "Give up after this long (0 waits forever)")
	f.DurationVar(&opts.interval, "interval", 500*time.Millisecond, "Poll interval")
	f.StringVar(&opts.logLevel, "log-level", "warn", "Log level")
	cmd.MarkFlagRequired("address")
	cmd.MarkFlagRequired("value")

	return cmd
}

func runWatch(ctx context.Context, opts *watchOptions) error {
	logger, err := utils.NewLogger(&config.LoggingConfig{
		Level:  opts.logLevel,
		Format: "console",
		Output: "stderr",
	})
	if err != nil {
		return err
	}
	defer utils.CloseLogger(logger)

	client := mcclient.New(opts.host, opts.port,
		mcclient.WithPollInterval(opts.interval),
		mcclient.WithLogger(logger),
	)
	if err := client.SetTargetMasked(opts.address, opts.value, opts.mask); err != nil {
		return err
	}
	if err := client.Start(); err != nil {
		return err
	}
	defer func() {
		client.Stop()
		<-client.Done()
	}()

	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	started := time.Now()
	if !client.Wait(ctx) {
		logger.Debug("Watch ended without a match", zap.Error(ctx.Err()))
		return fmt.Errorf("%s did not reach %d within %s", opts.address, opts.value, time.Since(started).Round(time.Millisecond))
	}

	fmt.Printf("%s = %d after %s\n", opts.address, client.CurrentValue(), time.Since(started).Round(time.Millisecond))
	return nil
}
