package main

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/audiomatch/internal/loadcheck"
)

// maxViolationsShown caps the violation table.
const maxViolationsShown = 20

func newLoadcheckCommand() *cobra.Command {
	cfg := &loadcheck.Config{}

	cmd := &cobra.Command{
		Use:   "loadcheck",
		Short: "Send generated requests to a running service and verify the responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := loadcheck.Run(cmd.Context(), cfg)
			if stats != nil {
				rows := [][]string{
					{"Submitted", strconv.Itoa(stats.Submitted)},
					{"Succeeded", strconv.Itoa(stats.Succeeded)},
					{"Rejected", strconv.Itoa(stats.Rejected)},
					{"Failed", strconv.Itoa(stats.Failed)},
					{"Cached", strconv.Itoa(stats.Cached)},
					{"Violations", strconv.Itoa(len(stats.Violations))},
					{"Success rate", number(stats.SuccessRate(), 1) + "%"},
					{"Requests/s", number(stats.Throughput(), 1)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
			}
			if errors.Is(err, loadcheck.ErrViolations) {
				shown := stats.Violations
				if len(shown) > maxViolationsShown {
					shown = shown[:maxViolationsShown]
				}
				rows := make([][]string, 0, len(shown))
				for _, v := range shown {
					rows = append(rows, []string{v.RequestID, v.Rule, v.Detail})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Request", "Rule", "Detail"}, rows, nil))
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVarP(&cfg.Requests, "requests", "n", loadcheck.DefaultRequests, "Number of requests to send")
	f.IntVarP(&cfg.Workers, "workers", "w", loadcheck.DefaultWorkers, "Number of concurrent workers")
	f.DurationVar(&cfg.Timeout, "timeout", loadcheck.DefaultTimeout, "Per-request timeout")
	f.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "Seed for request generation")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log each failure and violation")
	return cmd
}
