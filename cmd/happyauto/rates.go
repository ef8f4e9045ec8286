package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"happyauto/internal/infra"
	"happyauto/internal/modules/pricing"
)

var ratesCmd = &cobra.Command{
	Use:   "rates",
	Short: "Inspect or override per-class vehicle rates",
}

var ratesListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the effective rate table (config overlaid with vehicle_rates)",
	RunE:  runRatesList,
}

var (
	setBase  float64
	setPerKm float64
)

var ratesSetCmd = &cobra.Command{
	Use:   "set <vehicle_class>",
	Short: "Upsert a vehicle_rates row",
	Args:  cobra.ExactArgs(1),
	RunE:  runRatesSet,
}

func init() {
	ratesSetCmd.Flags().Float64Var(&setBase, "base", 0, "base fare in major units")
	ratesSetCmd.Flags().Float64Var(&setPerKm, "per-km", 0, "per-km rate in major units")
	_ = ratesSetCmd.MarkFlagRequired("base")
	_ = ratesSetCmd.MarkFlagRequired("per-km")
	ratesCmd.AddCommand(ratesListCmd, ratesSetCmd)
	rootCmd.AddCommand(ratesCmd)
}

func openRateStore(ctx context.Context) (*pricing.Store, func(), *pricing.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DB.Driver != "postgres" {
		return nil, nil, nil, errors.New("rates requires db.driver=postgres")
	}
	svc, err := pricing.NewService(cfg.Pricing)
	if err != nil {
		return nil, nil, nil, err
	}
	pool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return pricing.NewStore(pool), pool.Close, svc, nil
}

func runRatesList(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeDB, svc, err := openRateStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	if _, err := svc.LoadRates(ctx, store); err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tBASE\tPER_KM")
	for _, r := range sortedRates(svc.Rates()) {
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", r.VehicleClass, r.BaseFare, r.PerKm)
	}
	return w.Flush()
}

func runRatesSet(cmd *cobra.Command, args []string) error {
	if setBase < 0 || setPerKm < 0 {
		return errors.New("rates must be non-negative")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeDB, _, err := openRateStore(ctx)
	if err != nil {
		return err
	}
	defer closeDB()
	r := pricing.Rate{VehicleClass: args[0], BaseFare: setBase, PerKm: setPerKm}
	if err := store.UpsertRate(ctx, r); err != nil {
		return fmt.Errorf("upsert rate: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: base=%.2f per_km=%.2f\n", r.VehicleClass, r.BaseFare, r.PerKm)
	return nil
}

func sortedRates(rates map[string]pricing.Rate) []pricing.Rate {
	out := make([]pricing.Rate, 0, len(rates))
	for _, r := range rates {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b pricing.Rate) int { return strings.Compare(a.VehicleClass, b.VehicleClass) })
	return out
}
