// Command bench drives load against the detection endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// simple latency recorder (microseconds)
type recorder struct {
	mu   sync.Mutex
	durs []int64
}

func (r *recorder) add(d time.Duration) {
	us := d.Microseconds()
	if us < 0 {
		us = 0
	}
	r.mu.Lock()
	r.durs = append(r.durs, us)
	r.mu.Unlock()
}

func (r *recorder) percentiles() (p50, p95, p99 time.Duration) {
	r.mu.Lock()
	d := make([]int64, len(r.durs))
	copy(d, r.durs)
	r.mu.Unlock()
	if len(d) == 0 {
		return 0, 0, 0
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })
	at := func(p float64) time.Duration {
		i := int(float64(len(d)-1) * p)
		return time.Duration(d[i]) * time.Microsecond
	}
	return at(0.50), at(0.95), at(0.99)
}

type options struct {
	target      string
	duration    time.Duration
	concurrency int
	qps         int
	sitesFile   string
	allowHTTP   bool
	warmup      time.Duration
	timeout     time.Duration
}

type counters struct {
	requests   atomic.Int64
	success    atomic.Int64
	httpErr    atomic.Int64 // non-2xx HTTP responses
	netErr     atomic.Int64
	timeouts   atomic.Int64
	refused    atomic.Int64
	otherNet   atomic.Int64
	widgetYes  atomic.Int64 // 200 responses carrying "result": "yes"
	statusByCd sync.Map     // code -> *atomic.Int64
}

var opts options

var rootCmd = &cobra.Command{
	Use:   "bench [flags]",
	Short: "Load test the Klaviyo detection endpoint",
	Example: `  bench --url 'http://127.0.0.1:8080/api/scrape?url={q}' --sites sites.txt -c 8
  bench --qps 2 --duration 1m`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if !opts.allowHTTP && !strings.HasPrefix(opts.target, "https://") {
			return errors.New("refusing non-https target (--allow-http=false is set)")
		}
		if _, err := url.Parse(opts.target); err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}
		if opts.concurrency <= 0 {
			return errors.New("--concurrency must be positive")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		sites, err := loadSites(opts.sitesFile)
		if err != nil {
			return err
		}
		return run(ctx, opts, sites, cmd.OutOrStdout())
	},
	SilenceUsage: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.target, "url", "u", "http://127.0.0.1:8080/api/scrape?url={q}", "Target URL; {q} is replaced with a site from the list")
	f.DurationVarP(&opts.duration, "duration", "d", 10*time.Second, "Test duration")
	f.IntVarP(&opts.concurrency, "concurrency", "c", runtime.NumCPU(), "Number of concurrent workers")
	f.IntVar(&opts.qps, "qps", 0, "Global approximate queries per second (0 = max possible)")
	f.StringVarP(&opts.sitesFile, "sites", "s", "", "File with newline-separated sites to check")
	f.BoolVar(&opts.allowHTTP, "allow-http", true, "Allow plain HTTP (set false to require https)")
	f.DurationVar(&opts.warmup, "warmup", 0, "Warmup period excluded from latency stats")
	f.DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

var defaultSites = []string{"example.com", "example.org", "example.net"}

func loadSites(path string) ([]string, error) {
	if path == "" {
		return defaultSites, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}
	var sites []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sites = append(sites, line)
	}
	if len(sites) == 0 {
		return defaultSites, nil
	}
	return sites, nil
}

// requestURL fills the {q} placeholder, or appends url=<site> when absent.
func requestURL(target, site string) string {
	q := url.QueryEscape(site)
	if strings.Contains(target, "{q}") {
		return strings.ReplaceAll(target, "{q}", q)
	}
	if strings.Contains(target, "url=") {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&url=" + q
	}
	return target + "?url=" + q
}

func run(ctx context.Context, o options, sites []string, out io.Writer) error {
	transport := &http.Transport{
		MaxIdleConns:        1024,
		MaxIdleConnsPerHost: 1024,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	client := &http.Client{Timeout: o.timeout, Transport: transport}

	start := time.Now()
	warmupUntil := start.Add(o.warmup)
	ctx, cancel := context.WithDeadline(ctx, start.Add(o.duration))
	defer cancel()

	var tick <-chan time.Time
	if o.qps > 0 {
		t := time.NewTicker(time.Second / time.Duration(o.qps))
		defer t.Stop()
		tick = t.C
	}

	var (
		c   counters
		rec recorder
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.concurrency; i++ {
		g.Go(func() error {
			for {
				if tick != nil {
					select {
					case <-tick:
					case <-gctx.Done():
						return nil
					}
				}
				if gctx.Err() != nil {
					return nil
				}
				n := c.requests.Add(1)
				site := sites[n%int64(len(sites))]
				req, err := http.NewRequestWithContext(gctx, http.MethodGet, requestURL(o.target, site), nil)
				if err != nil {
					return err
				}
				st := time.Now()
				resp, err := client.Do(req)
				lat := time.Since(st)
				if time.Now().After(warmupUntil) {
					rec.add(lat)
				}
				if err != nil {
					if gctx.Err() != nil {
						// run ended mid-request
						c.requests.Add(-1)
						return nil
					}
					classifyNetErr(err, &c)
					continue
				}
				body, _ := io.ReadAll(resp.Body)
				_ = resp.Body.Close()
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					c.success.Add(1)
					if strings.Contains(string(body), `"result": "yes"`) {
						c.widgetYes.Add(1)
					}
				} else {
					c.httpErr.Add(1)
				}
				v, _ := c.statusByCd.LoadOrStore(resp.StatusCode, new(atomic.Int64))
				v.(*atomic.Int64).Add(1)
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	report(out, o, &c, &rec, time.Since(start))
	return nil
}

func report(out io.Writer, o options, c *counters, rec *recorder, elapsed time.Duration) {
	total := c.requests.Load()
	p50, p95, p99 := rec.percentiles()

	fmt.Fprintln(out, "=== Benchmark Summary ===")
	fmt.Fprintf(out, "Target:      %s\n", o.target)
	fmt.Fprintf(out, "Duration:    %s (warmup %s)\n", elapsed.Truncate(time.Millisecond), o.warmup)
	fmt.Fprintf(out, "Workers:     %d\n", o.concurrency)
	if o.qps > 0 {
		fmt.Fprintf(out, "QPS cap:     %d\n", o.qps)
	}
	fmt.Fprintf(out, "Requests:    %d (success %d, http_error %d, net_error %d)\n", total, c.success.Load(), c.httpErr.Load(), c.netErr.Load())
	fmt.Fprintf(out, "Widget yes:  %d\n", c.widgetYes.Load())
	fmt.Fprintf(out, "Throughput:  %.1f req/s\n", float64(total)/elapsed.Seconds())
	fmt.Fprintf(out, "Latency p50: %s  p95: %s  p99: %s\n", p50, p95, p99)
	fmt.Fprintln(out, "Status codes:")
	c.statusByCd.Range(func(k, v any) bool {
		fmt.Fprintf(out, "  %d: %d\n", k.(int), v.(*atomic.Int64).Load())
		return true
	})
	if c.netErr.Load() > 0 {
		fmt.Fprintln(out, "Network errors:")
		fmt.Fprintf(out, "  timeouts: %d\n", c.timeouts.Load())
		fmt.Fprintf(out, "  refused:  %d\n", c.refused.Load())
		fmt.Fprintf(out, "  other:    %d\n", c.otherNet.Load())
	}
}

func classifyNetErr(err error, c *counters) {
	c.netErr.Add(1)
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.timeouts.Add(1)
		return
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.timeouts.Add(1)
		return
	}
	if errors.Is(err, syscall.ECONNREFUSED) || strings.Contains(err.Error(), "connection refused") {
		c.refused.Add(1)
		return
	}
	c.otherNet.Add(1)
}
