// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/harvest-engine/internal/harvest"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest provider data into the document store",
	Long: `Harvest fetches every page of a service request, maps the items,
and persists them as documents. Use run for a one-shot harvest or
schedule to re-fetch on an interval.`,
}

var harvestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one harvest now",
	RunE:  runHarvestRun,
}

var harvestScheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-harvest on a fixed interval until interrupted",
	RunE:  runHarvestSchedule,
}

func init() {
	harvestCmd.PersistentFlags().String("provider", "", "provider name")
	harvestCmd.PersistentFlags().String("request", "", "service request name, or provider/request")
	harvestCmd.PersistentFlags().String("query", "", "search query substituted for [QUERY]")
	harvestCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (default 60s)")

	harvestScheduleCmd.Flags().Duration("interval", time.Hour, "pause between harvest runs")
	harvestScheduleCmd.Flags().Bool("immediate", true, "run once immediately before the first tick")
	harvestScheduleCmd.Flags().String("user", "", "user id recorded on the job")

	harvestCmd.AddCommand(harvestRunCmd)
	harvestCmd.AddCommand(harvestScheduleCmd)
	rootCmd.AddCommand(harvestCmd)
}

func runHarvestRun(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	providerKey, _ := cmd.Flags().GetString("provider")
	requestKey, _ := cmd.Flags().GetString("request")
	p, sr, err := resolveServiceRequest(reg, providerKey, requestKey)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	query, _ := cmd.Flags().GetString("query")

	runner := harvest.NewRunner(client, store, nil, cfg.Harvest, newLogger())
	summary, err := runner.Run(context.Background(), p, sr, query, os.Stdout)
	if err != nil {
		return err
	}

	fmt.Printf("harvested %s/%s: %d pages, %d items, %d stored, %d failed\n",
		summary.Provider, summary.ServiceRequest,
		summary.Pages, summary.Fetched, summary.Stored, summary.Failed)
	if summary.HasFailures() {
		return fmt.Errorf("%d item(s) failed", summary.Failed+len(summary.Errors))
	}
	return nil
}

func runHarvestSchedule(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	providerKey, _ := cmd.Flags().GetString("provider")
	requestKey, _ := cmd.Flags().GetString("request")
	p, sr, err := resolveServiceRequest(reg, providerKey, requestKey)
	if err != nil {
		return err
	}

	store, err := openStore(cfg, newLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout == 0 {
		timeout = defaultTimeout
	}
	client := &http.Client{Timeout: timeout}
	query, _ := cmd.Flags().GetString("query")
	logger := newLogger()

	runner := harvest.NewRunner(client, store, nil, cfg.Harvest, logger)
	scheduler := harvest.NewScheduler(cfg.Harvest, func(ctx context.Context, job harvest.Job) error {
		_, err := runner.Run(ctx, p, sr, query, os.Stdout)
		return err
	}, logger)

	interval, _ := cmd.Flags().GetDuration("interval")
	immediate, _ := cmd.Flags().GetBool("immediate")
	userID, _ := cmd.Flags().GetString("user")

	scheduler.Schedule(harvest.Job{
		UserID:             userID,
		ProviderID:         p.Name,
		SrID:               sr.Name,
		Interval:           interval,
		ExecuteImmediately: immediate,
	})

	fmt.Printf("scheduled %s/%s every %s; interrupt to stop\n", p.Name, sr.Name, interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	scheduler.Stop()
	return nil
}
