// Command gotoken-loadtest seeds users and measures Login and Authenticate
// throughput against an in-process engine.
package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/internal/logging"
	"github.com/MrEthical07/goToken/keystore"
	otelexport "github.com/MrEthical07/goToken/metrics/export/otel"
	"github.com/MrEthical07/goToken/store/memory"
	"github.com/alecthomas/kong"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

type CLI struct {
	Users       int           `default:"1000" help:"Number of users to seed."`
	Concurrency int           `default:"64" help:"Number of concurrent workers."`
	LoginOps    int           `default:"2000" help:"Login operations."`
	AuthOps     int           `default:"200000" help:"Authenticate operations."`
	Alg         string        `default:"EdDSA" enum:"EdDSA,HS256" help:"Signing algorithm."`
	RedisAddr   string        `env:"REDIS_ADDR" help:"Redis address for rate-limit counters; miniredis when empty."`
	Argon2MemKB uint32        `default:"8192" name:"argon2-mem-kb" help:"Argon2id memory in KB."`
	Lifetime    time.Duration `default:"15m" help:"Token lifetime."`
	LogLevel    string        `default:"warn" help:"Log level."`
}

type userState struct {
	identifier string
	password   string
}

func (cli *CLI) Validate() error {
	if cli.Users <= 0 || cli.Concurrency <= 0 || cli.LoginOps <= 0 || cli.AuthOps <= 0 {
		return fmt.Errorf("users, concurrency, login-ops and auth-ops must be > 0")
	}
	return nil
}

func (cli *CLI) Run(ctx context.Context, logger *zap.Logger) error {
	client, cleanup, err := cli.redis()
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := cli.engine(client, logger)
	if err != nil {
		return err
	}
	defer engine.Close()

	users := make([]userState, cli.Users)
	fmt.Printf("seeding %d users...\n", cli.Users)
	startSeed := time.Now()
	for i := range users {
		users[i] = userState{
			identifier: fmt.Sprintf("user-%d@loadtest", i),
			password:   fmt.Sprintf("loadtest-password-%d", i),
		}
		if _, err := engine.Register(ctx, goToken.RegisterRequest{
			Identifier: users[i].identifier,
			Password:   users[i].password,
			Roles:      []string{"member"},
		}); err != nil {
			return fmt.Errorf("register %s: %w", users[i].identifier, err)
		}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	tokens := make([]string, 0, len(users))
	var tokensMu sync.Mutex
	loginStats := runPhase(ctx, cli.LoginOps, cli.Concurrency, 7919, func(ctx context.Context, r *rand.Rand) error {
		u := users[r.Intn(len(users))]
		tok, err := engine.Login(ctx, u.identifier, u.password)
		if err != nil {
			return err
		}
		tokensMu.Lock()
		tokens = append(tokens, tok.Raw)
		tokensMu.Unlock()
		return nil
	})
	if len(tokens) == 0 {
		return fmt.Errorf("no successful logins")
	}

	authStats := runPhase(ctx, cli.AuthOps, cli.Concurrency, 6151, func(ctx context.Context, r *rand.Rand) error {
		_, err := engine.Authenticate(ctx, tokens[r.Intn(len(tokens))])
		return err
	})

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("authenticate", authStats)

	counters, err := engineCounters(ctx, engine)
	if err != nil {
		return err
	}
	fmt.Println("---- engine counters ----")
	printCounters(os.Stdout, counters)
	return nil
}

// engineCounters reads every engine counter through the OpenTelemetry
// exporter and returns the non-zero ones by instrument name.
func engineCounters(ctx context.Context, engine *goToken.Engine) (map[string]int64, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	exp, err := otelexport.NewOTelExporter(provider.Meter("gotoken-loadtest"), engine)
	if err != nil {
		return nil, err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if dp.Value != 0 {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out, nil
}

func printCounters(w io.Writer, counters map[string]int64) {
	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s %d\n", name, counters[name])
	}
}

func (cli *CLI) redis() (redis.UniversalClient, func(), error) {
	addr := cli.RedisAddr
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}
	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func (cli *CLI) engine(client redis.UniversalClient, logger *zap.Logger) (*goToken.Engine, error) {
	keys := keystore.New(keystore.Options{})
	var (
		key *keystore.SigningKey
		err error
	)
	if cli.Alg == "HS256" {
		key, err = keystore.GenerateHMAC("loadtest", keystore.Window{})
	} else {
		key, err = keystore.GenerateEd25519("loadtest", keystore.Window{})
	}
	if err != nil {
		return nil, err
	}
	if err := keys.Rotate(key); err != nil {
		return nil, err
	}

	cfg := goToken.DefaultConfig()
	cfg.Token.Lifetime = cli.Lifetime
	cfg.Password.Memory = cli.Argon2MemKB
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	// every worker logs in with valid credentials; throttling would only
	// measure the limiter
	cfg.RateLimit.MaxLoginAttempts = 1 << 30
	cfg.RateLimit.EnableRegisterThrottle = false
	cfg.Metrics.Enabled = true

	return goToken.New().
		WithConfig(cfg).
		WithKeyStore(keys).
		WithUserProvider(memory.New()).
		WithRedis(client).
		WithLogger(logger).
		Build()
}

func runPhase(ctx context.Context, ops, concurrency int, seed int64, op func(context.Context, *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops || ctx.Err() != nil {
					return
				}
				t0 := time.Now()
				err := op(ctx, r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("gotoken-loadtest"),
		kong.Description("Measure Login and Authenticate throughput."),
	)

	logger, err := logging.New(logging.Config{Env: "dev", Level: cli.LogLevel, ServiceName: "gotoken-loadtest"})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(logger)
	if err := kctx.Run(); err != nil {
		logger.Error("load test failed", zap.Error(err))
		os.Exit(1)
	}
}
