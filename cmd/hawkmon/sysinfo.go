package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hawkmon/internal/alerts"
	"hawkmon/internal/collector"
	"hawkmon/internal/docker"
)

func sysinfoCmd(flags *rootFlags) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:          "sysinfo",
		Short:        "Print host information and one sample of every metric",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			logger := newLogger(os.Stderr, "text", cfg.LogLevel)
			var containers collector.ContainerSource
			if cfg.ContainersEnabled() {
				containers = docker.NewClient(cfg.DockerSocket)
			}
			s := collector.NewHostSampler(containers, wait, logger)

			ctx := cmd.Context()
			if err := s.Init(ctx); err != nil {
				return err
			}
			info, err := s.HostInfo(ctx)
			if err != nil {
				return fmt.Errorf("host info: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Hostname: %s\nOS: %s %s %s (%s)\nKernel: %s\n", info.Hostname, info.OS, info.Platform, info.Version, info.Arch, info.Kernel)
			for _, it := range info.Interfaces {
				fmt.Fprintf(out, "Interface %s [%s]: %s\n", it.Name, it.MAC, strings.Join(it.Addrs, ", "))
			}

			// network and cpu values are deltas against Init
			time.Sleep(wait)
			snap, err := s.Sample(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
			th := cfg.Thresholds()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "\nMETRIC\tVALUE\tTHRESHOLD\tENABLED")
			for _, r := range alerts.Readings(snap) {
				m := th[r.Key.Type()]
				unit := "%"
				if r.Key.Type() == alerts.TypeNetwork {
					unit = " MB"
				}
				fmt.Fprintf(tw, "%s\t%.2f%s\t%.2f%s\t%t\n", r.Key, r.Value, unit, m.Threshold, unit, m.Enabled)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", time.Second, "time between baseline and sample")
	return cmd
}
