// README: Benchmark runner; executes DB/Redis/HTTP checks, an accept race and a booking load test.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"happyauto/internal/modules/delivery"
	"happyauto/internal/types"
	"happyauto/migrations"
)

type benchConfig struct {
	BaseURL        string
	ApplyMigration bool
	Strict         bool
	Timeout        time.Duration
	Concurrency    int
	Duration       time.Duration
}

var benchCfg benchConfig

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run environment checks, the accept race and a booking load test",
	RunE:  runBench,
}

func init() {
	f := benchCmd.Flags()
	f.StringVar(&benchCfg.BaseURL, "base-url", "http://localhost:8080", "API base URL")
	f.BoolVar(&benchCfg.ApplyMigration, "apply-migration", false, "apply migrations before the checks")
	f.BoolVar(&benchCfg.Strict, "strict", false, "fail when any check is skipped")
	f.DurationVar(&benchCfg.Timeout, "timeout", 60*time.Second, "total timeout")
	f.IntVar(&benchCfg.Concurrency, "concurrency", 20, "concurrent workers for race and load checks")
	f.DurationVar(&benchCfg.Duration, "duration", 10*time.Second, "load test duration")
	rootCmd.AddCommand(benchCmd)
}

type Runner struct {
	cfg   benchConfig
	dsn   string
	rdb   string
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
	out   io.Writer
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), benchCfg.Timeout)
	defer cancel()

	r := &Runner{
		cfg:   benchCfg,
		dsn:   cfg.DB.DSN,
		rdb:   cfg.Redis.Addr,
		httpc: &http.Client{Timeout: 10 * time.Second},
		out:   cmd.OutOrStdout(),
	}
	r.cfg.BaseURL = strings.TrimRight(r.cfg.BaseURL, "/")
	results := r.RunAll(ctx)

	out := r.out
	fmt.Fprintln(out, "\n== Summary ==")
	counts := map[string]int{}
	for _, res := range results {
		counts[res.Status]++
	}
	fmt.Fprintf(out, "PASS=%d FAIL=%d SKIP=%d\n", counts["PASS"], counts["FAIL"], counts["SKIP"])

	if counts["FAIL"] > 0 || (r.cfg.Strict && counts["SKIP"] > 0) {
		return errors.New("bench failed")
	}
	return nil
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.dsn != "" {
		if db, err := pgxpool.New(ctx, r.dsn); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.rdb != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.rdb})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		printResult(r.out, tc.Name, res)
	}
	return results
}

func printResult(w io.Writer, name string, res Result) {
	if w == nil {
		w = io.Discard
	}
	line := fmt.Sprintf("%-5s %s", res.Status, name)
	if res.Latency > 0 {
		line += fmt.Sprintf(" (%s)", res.Latency)
	}
	if res.Note != "" {
		line += " - " + res.Note
	}
	fmt.Fprintln(w, line)
}

var requiredTables = []string{"deliveries", "delivery_events", "drivers", "vehicle_rates"}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{
			Name: "Env: Postgres connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				start := time.Now()
				if err := r.db.Ping(ctx); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "Env: Redis connect",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.redis == nil {
					return Result{Status: "SKIP", Note: "redis not configured"}
				}
				ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
				defer cancel()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Schema: apply migrations",
			Run: func(ctx context.Context, r *Runner) Result {
				if !r.cfg.ApplyMigration {
					return Result{Status: "SKIP", Note: "apply-migration=false"}
				}
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				if err := migrations.Apply(ctx, r.db); err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "Schema: required tables",
			Run: func(ctx context.Context, r *Runner) Result {
				if r.db == nil {
					return Result{Status: "FAIL", Note: "db not configured"}
				}
				for _, t := range requiredTables {
					var exists bool
					err := r.db.QueryRow(ctx,
						`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, t,
					).Scan(&exists)
					if err != nil {
						return Result{Status: "FAIL", Note: err.Error()}
					}
					if !exists {
						return Result{Status: "FAIL", Note: "missing table: " + t}
					}
				}
				return Result{Status: "PASS"}
			},
		},
		{
			Name: "HTTP: health",
			Run: func(ctx context.Context, r *Runner) Result {
				start := time.Now()
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/health", nil)
				if err != nil {
					return Result{Status: "FAIL", Note: err.Error()}
				}
				resp, err := r.httpc.Do(req)
				if err != nil {
					return Result{Status: "SKIP", Note: "api unreachable: " + err.Error()}
				}
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					return Result{Status: "FAIL", Note: fmt.Sprintf("status=%d", resp.StatusCode)}
				}
				return Result{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{Name: "Race: concurrent accept on one delivery", Run: concurrentAccept},
		{Name: "Perf: booking inserts", Run: bookingLoad},
	}
}

func (r *Runner) deliveryService() *delivery.Service {
	policy := delivery.Policy{
		CancellationFine:  types.FromMajor(100, "INR"),
		FineWindow:        5 * time.Minute,
		DefaultPickupLead: 30 * time.Minute,
	}
	return delivery.NewService(delivery.NewPGStore(r.db), policy, zerolog.Nop())
}

func benchRequest() delivery.Request {
	return delivery.Request{
		PickupAddress:  "bench pickup",
		Pickup:         types.Point{Lat: 12.9716, Lng: 77.5946},
		DropoffAddress: "bench dropoff",
		Dropoff:        types.Point{Lat: 12.9784, Lng: 77.6408},
		Vehicle:        delivery.Vehicle{Make: "Bench", Model: "Runner", Year: 2024},
		VehicleClass:   "auto",
	}
}

// concurrentAccept passes when exactly one driver wins and every loser gets ErrAlreadyAssigned.
func concurrentAccept(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	svc := r.deliveryService()
	d, err := svc.Create(ctx, delivery.CreateCommand{
		CustomerID: "bench-customer",
		Request:    benchRequest(),
		Quote:      delivery.Quote{Cost: types.FromMajor(50, "INR"), RouteSource: "fallback"},
	})
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		succ, lost int
		other      []string
	)
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Accept(ctx, delivery.AcceptCommand{
				DeliveryID: d.ID,
				DriverID:   types.ID(fmt.Sprintf("bench-driver-%d", i)),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succ++
			case errors.Is(err, delivery.ErrAlreadyAssigned):
				lost++
			default:
				other = append(other, err.Error())
			}
		}(i)
	}
	wg.Wait()

	note := fmt.Sprintf("success=%d already_assigned=%d other=%d", succ, lost, len(other))
	if succ == 1 && len(other) == 0 {
		return Result{Status: "PASS", Latency: time.Since(start), Note: note}
	}
	if len(other) > 0 {
		note += " first_error=" + other[0]
	}
	return Result{Status: "FAIL", Note: note}
}

func bookingLoad(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	svc := r.deliveryService()
	end := time.Now().Add(r.cfg.Duration)
	var (
		wg              sync.WaitGroup
		mu              sync.Mutex
		count, errCount int64
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			customer := types.ID(fmt.Sprintf("bench-load-%d", i))
			for time.Now().Before(end) && ctx.Err() == nil {
				_, err := svc.Create(ctx, delivery.CreateCommand{
					CustomerID: customer,
					Request:    benchRequest(),
					Quote:      delivery.Quote{Cost: types.FromMajor(50, "INR"), RouteSource: "fallback"},
				})
				mu.Lock()
				if err != nil {
					errCount++
				} else {
					count++
				}
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if count == 0 {
		return Result{Status: "FAIL", Note: "no bookings completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return Result{Status: "PASS", Note: fmt.Sprintf("bookings/s=%.1f errors=%d", rps, errCount)}
}
