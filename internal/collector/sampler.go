package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
	"golang.org/x/sync/errgroup"

	"hawkmon/internal/metrics"
	"hawkmon/internal/models"
)

// ErrNoReadings means every sub-query of a sample failed.
var ErrNoReadings = errors.New("no metric could be sampled")

// ContainerSource lists per-container usage, normally the Docker client.
type ContainerSource interface {
	Ping(ctx context.Context) error
	Usage(ctx context.Context) ([]models.ContainerUsage, error)
}

type sources struct {
	cpuPercent    func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)
	virtualMemory func(ctx context.Context) (*mem.VirtualMemoryStat, error)
	partitions    func(ctx context.Context, all bool) ([]disk.PartitionStat, error)
	diskUsage     func(ctx context.Context, path string) (*disk.UsageStat, error)
	ioCounters    func(ctx context.Context, pernic bool) ([]psnet.IOCountersStat, error)
	interfaces    func(ctx context.Context) (psnet.InterfaceStatList, error)
}

type netSample struct {
	psnet.IOCountersStat
	at time.Time
}

type HostSampler struct {
	sources
	log        *slog.Logger
	containers ContainerSource
	interval   time.Duration
	timeout    time.Duration
	now        func() time.Time

	netMu    sync.Mutex
	prevNet  map[string]netSample
	loopback map[string]bool
}

// NewHostSampler builds a sampler over the local host. interval is the
// sampling period: it bounds each Sample and normalizes network deltas.
// containers may be nil to skip container stats.
func NewHostSampler(containers ContainerSource, interval time.Duration, logger *slog.Logger) *HostSampler {
	timeout := interval
	switch {
	case interval <= 0:
		timeout = 30 * time.Second
	case timeout < 5*time.Second:
		timeout = 5 * time.Second
	}
	return &HostSampler{
		sources:    defaultSources(),
		log:        logger,
		containers: containers,
		interval:   interval,
		timeout:    timeout,
		now:        time.Now,
		prevNet:    map[string]netSample{},
		loopback:   map[string]bool{},
	}
}

// Init enumerates network interfaces and primes the traffic baseline. Its
// error is fatal: without interfaces network alerting cannot work. An
// unreachable container source only disables container sampling.
func (s *HostSampler) Init(ctx context.Context) error {
	ifaces, err := s.interfaces(ctx)
	if err != nil {
		return fmt.Errorf("enumerate network interfaces: %w", err)
	}
	for _, it := range ifaces {
		if isLoopback(it) {
			s.loopback[it.Name] = true
		}
	}
	if _, err := s.readNetwork(ctx); err != nil {
		return fmt.Errorf("read network counters: %w", err)
	}
	// first cpu.Percent call only establishes the baseline
	_, _ = s.cpuPercent(ctx, 0, false)

	if s.containers != nil {
		if err := s.containers.Ping(ctx); err != nil {
			s.log.Warn("container runtime unreachable, container stats disabled", "err", err)
			s.containers = nil
		}
	}
	s.log.Info("sampler initialized", "interfaces", len(ifaces), "containers", s.containers != nil)
	return nil
}

// Sample runs every sub-query concurrently and joins them into one snapshot.
// A failed sub-query leaves its part of the snapshot empty; its error is part
// of the returned error. ErrNoReadings is included when nothing was read.
func (s *HostSampler) Sample(ctx context.Context) (models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snap := models.Snapshot{TS: s.now().UTC()}
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	fail := func(source string, err error) {
		metrics.SampleErrors.WithLabelValues(source).Inc()
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", source, err))
		mu.Unlock()
	}

	g.Go(func() error {
		v, err := s.readCPU(ctx)
		if err != nil {
			fail("cpu", err)
			return nil
		}
		snap.CPUPct = v
		return nil
	})
	g.Go(func() error {
		v, err := s.readMem(ctx)
		if err != nil {
			fail("memory", err)
			return nil
		}
		snap.Memory = v
		return nil
	})
	g.Go(func() error {
		v, err := s.readDisks(ctx)
		if err != nil {
			fail("disk", err)
			return nil
		}
		snap.Disks = v
		return nil
	})
	g.Go(func() error {
		v, err := s.readNetwork(ctx)
		if err != nil {
			fail("network", err)
			return nil
		}
		snap.Networks = v
		return nil
	})
	if s.containers != nil {
		g.Go(func() error {
			v, err := s.containers.Usage(ctx)
			if err != nil {
				fail("containers", err)
			}
			snap.Containers = v
			return nil
		})
	}
	_ = g.Wait()

	if snap.Empty() && len(errs) > 0 {
		errs = append(errs, ErrNoReadings)
	}
	return snap, errors.Join(errs...)
}
