package sensorcli

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/sensorboard/internal/domain/model"
	"github.com/okian/sensorboard/pkg/logger"
)

// ErrVerification reports that the server's reading count did not grow by
// the number of accepted submissions.
var ErrVerification = errors.New("load test verification failed")

// Load test defaults.
const (
	defaultLoadReadings = 1000
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	progressInterval    = time.Second
	percent             = 100
)

// LoadConfig configures a load test run.
type LoadConfig struct {
	BaseURL  string
	User     string
	Password string
	Readings int
	Workers  int
	Timeout  time.Duration
	Verbose  bool
}

// LoadStats summarizes a load test run.
type LoadStats struct {
	RunID       string
	Submitted   int
	Created     int
	Rejected    int
	RateLimited int
	Failed      int
	TotalBefore int
	TotalAfter  int
	P50         time.Duration
	P95         time.Duration
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

func (c *CLI) loadtest(ctx context.Context, args []string) error {
	fs := c.flagSet("loadtest")
	cfg := &LoadConfig{}
	fs.StringVar(&cfg.BaseURL, "url", "http://localhost:5000", "base URL of the service")
	fs.StringVar(&cfg.User, "user", "admin", "basic auth user with the admin role")
	fs.StringVar(&cfg.Password, "password", "", "basic auth password (prompted when omitted)")
	fs.IntVar(&cfg.Readings, "readings", defaultLoadReadings, "number of readings to submit")
	fs.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "number of concurrent workers")
	fs.DurationVar(&cfg.Timeout, "timeout", defaultTimeout, "HTTP request timeout")
	fs.BoolVar(&cfg.Verbose, "verbose", false, "log progress every second")
	if _, err := parseInterleaved(fs, args); err != nil {
		return err
	}
	if cfg.Readings < 1 || cfg.Workers < 1 {
		return fmt.Errorf("%w: readings and workers must be positive", ErrUsage)
	}
	if cfg.Password == "" {
		p, err := c.Prompt(fmt.Sprintf("Password for %s: ", cfg.User))
		if err != nil {
			return err
		}
		cfg.Password = p
	}

	stats, err := c.RunLoadTest(ctx, cfg)
	if stats != nil {
		c.printLoadStats(stats)
	}
	return err
}

// RunLoadTest checks the service, submits cfg.Readings generated readings
// through GET /measure and verifies the stored total grew accordingly.
func (c *CLI) RunLoadTest(ctx context.Context, cfg *LoadConfig) (*LoadStats, error) {
	c.defaults()
	log := c.Logger
	stats := &LoadStats{RunID: uuid.NewString(), StartTime: time.Now()}

	log.Info(ctx, "starting load test",
		logger.String("run_id", stats.RunID),
		logger.String("base_url", cfg.BaseURL),
		logger.Int("readings", cfg.Readings),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	client := newAPIClient(cfg)

	// Step 1: service health
	if err := client.health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: baseline
	before, err := client.total(ctx)
	if err != nil {
		return nil, fmt.Errorf("baseline count failed: %w", err)
	}
	stats.TotalBefore = before

	// Step 3: submit concurrently
	readings := generateReadings(cfg.Readings)
	if err := c.submit(ctx, client, cfg, readings, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	// Step 4: verify
	after, err := client.total(ctx)
	if err != nil {
		return stats, fmt.Errorf("final count failed: %w", err)
	}
	stats.TotalAfter = after
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if err := verifyTotals(stats); err != nil {
		return stats, err
	}
	if grown := stats.TotalAfter - stats.TotalBefore; grown > stats.Created {
		log.Warn(ctx, "reading count grew more than submitted; other writers were active",
			logger.Int("grown", grown), logger.Int("created", stats.Created))
	}
	log.Info(ctx, "load test completed", logger.String("run_id", stats.RunID))
	return stats, nil
}

func (c *CLI) submit(ctx context.Context, client *apiClient, cfg *LoadConfig, readings []model.Reading, stats *LoadStats) error {
	var (
		submitted, created, rejected, limited, failed atomic.Int64

		mu      sync.Mutex
		latency *ddsketch.DDSketch
	)
	if sk, err := ddsketch.NewDefaultDDSketch(0.01); err == nil {
		latency = sk
	}

	jobs := make(chan int, cfg.Workers*2)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := range readings {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case jobs <- i:
			}
		}
		return nil
	})

	for w := 0; w < cfg.Workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				outcome, elapsed := client.measure(gctx, readings[i], stats.RunID+"-"+strconv.Itoa(i))
				submitted.Add(1)
				switch outcome {
				case outcomeCreated:
					created.Add(1)
				case outcomeRejected:
					rejected.Add(1)
				case outcomeRateLimited:
					limited.Add(1)
				default:
					failed.Add(1)
				}
				if latency != nil {
					mu.Lock()
					_ = latency.Add(elapsed.Seconds())
					mu.Unlock()
				}
			}
			return nil
		})
	}

	done := make(chan struct{})
	if cfg.Verbose {
		go func() {
			t := time.NewTicker(progressInterval)
			defer t.Stop()
			for {
				select {
				case <-done:
					return
				case <-t.C:
					c.Logger.Info(ctx, "progress",
						logger.Int64("submitted", submitted.Load()),
						logger.Int("total", len(readings)),
						logger.Int64("created", created.Load()),
						logger.Int64("failed", failed.Load()))
				}
			}
		}()
	}
	err := g.Wait()
	close(done)

	stats.Submitted = int(submitted.Load())
	stats.Created = int(created.Load())
	stats.Rejected = int(rejected.Load())
	stats.RateLimited = int(limited.Load())
	stats.Failed = int(failed.Load())
	if latency != nil {
		if v, err := latency.GetValueAtQuantile(0.50); err == nil {
			stats.P50 = time.Duration(v * float64(time.Second))
		}
		if v, err := latency.GetValueAtQuantile(0.95); err == nil {
			stats.P95 = time.Duration(v * float64(time.Second))
		}
	}
	return err
}

// verifyTotals checks that every created reading is visible in the count.
func verifyTotals(s *LoadStats) error {
	if grown := s.TotalAfter - s.TotalBefore; grown < s.Created {
		return fmt.Errorf("%w: %d readings accepted but total grew by %d", ErrVerification, s.Created, grown)
	}
	return nil
}

func (c *CLI) printLoadStats(s *LoadStats) {
	var successRate, perSecond float64
	if s.Submitted > 0 {
		successRate = float64(s.Created) / float64(s.Submitted) * percent
	}
	if s.Duration > 0 {
		perSecond = float64(s.Submitted) / s.Duration.Seconds()
	}
	fmt.Fprintf(c.Out, `Load test %s
   Submitted:    %d
   Created:      %d
   Rejected:     %d
   Rate limited: %d
   Failed:       %d
   Total:        %d -> %d
   Success rate: %.1f%%
   Throughput:   %.1f req/s
   Latency p50:  %s
   Latency p95:  %s
`, s.RunID, s.Submitted, s.Created, s.Rejected, s.RateLimited, s.Failed,
		s.TotalBefore, s.TotalAfter, successRate, perSecond, s.P50, s.P95)
}
