package collector

import (
	"context"
	"errors"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"

	"hawkmon/internal/models"
)

// skipFSTypes are read-only or memory-backed filesystems that are always
// "full" or meaningless for capacity alerts.
var skipFSTypes = map[string]bool{
	"squashfs": true, "iso9660": true, "overlay": true, "tmpfs": true,
	"devtmpfs": true, "proc": true, "sysfs": true, "cgroup": true, "cgroup2": true,
}

func (s *HostSampler) readCPU(ctx context.Context) (*float64, error) {
	pcts, err := s.cpuPercent(ctx, 0, false)
	if err != nil {
		return nil, err
	}
	if len(pcts) == 0 {
		return nil, errors.New("cpu percent: no data")
	}
	v := pcts[0]
	return &v, nil
}

func (s *HostSampler) readMem(ctx context.Context) (*models.MemoryUsage, error) {
	vm, err := s.virtualMemory(ctx)
	if err != nil {
		return nil, err
	}
	if vm.Total == 0 {
		return nil, errors.New("virtual memory: zero total")
	}
	return &models.MemoryUsage{UsedBytes: vm.Used, TotalBytes: vm.Total}, nil
}

func (s *HostSampler) readDisks(ctx context.Context) ([]models.DiskUsage, error) {
	parts, err := s.partitions(ctx, false)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]models.DiskUsage, 0, len(parts))
	var errs []error
	for _, p := range parts {
		if skipFSTypes[p.Fstype] || seen[p.Device] {
			continue
		}
		u, err := s.diskUsage(ctx, p.Mountpoint)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if u.Total == 0 {
			continue
		}
		seen[p.Device] = true
		out = append(out, models.DiskUsage{FS: p.Device, Mountpoint: p.Mountpoint, UsedBytes: u.Used, SizeBytes: u.Total})
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// readNetwork reports per-interface traffic since the previous call. An
// interface seen for the first time, or whose counters went backwards, only
// sets the baseline. When more than one interval has passed since the
// baseline (a skipped tick), the delta is scaled down to one interval; it is
// never scaled up.
func (s *HostSampler) readNetwork(ctx context.Context) ([]models.NetworkIO, error) {
	counters, err := s.ioCounters(ctx, true)
	if err != nil {
		return nil, err
	}
	now := s.now()
	s.netMu.Lock()
	defer s.netMu.Unlock()
	out := make([]models.NetworkIO, 0, len(counters))
	for _, c := range counters {
		if s.loopback[c.Name] || c.Name == "lo" {
			continue
		}
		prev, ok := s.prevNet[c.Name]
		s.prevNet[c.Name] = netSample{IOCountersStat: c, at: now}
		if !ok || c.BytesSent < prev.BytesSent || c.BytesRecv < prev.BytesRecv {
			continue
		}
		tx, rx := c.BytesSent-prev.BytesSent, c.BytesRecv-prev.BytesRecv
		if elapsed := now.Sub(prev.at); s.interval > 0 && elapsed > s.interval {
			f := float64(s.interval) / float64(elapsed)
			tx = uint64(float64(tx) * f)
			rx = uint64(float64(rx) * f)
		}
		out = append(out, models.NetworkIO{Interface: c.Name, TXBytes: tx, RXBytes: rx})
	}
	return out, nil
}

// HostInfo describes the machine and its external interfaces that carry an
// address.
func (s *HostSampler) HostInfo(ctx context.Context) (models.HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return models.HostInfo{}, err
	}
	ifaces, err := s.interfaces(ctx)
	if err != nil {
		return models.HostInfo{}, err
	}
	hi := models.HostInfo{
		Hostname: info.Hostname,
		OS:       info.OS,
		Platform: info.Platform,
		Version:  info.PlatformVersion,
		Arch:     info.KernelArch,
		Kernel:   info.KernelVersion,
	}
	for _, it := range ifaces {
		if isLoopback(it) || len(it.Addrs) == 0 {
			continue
		}
		addrs := make([]string, 0, len(it.Addrs))
		for _, a := range it.Addrs {
			addrs = append(addrs, a.Addr)
		}
		hi.Interfaces = append(hi.Interfaces, models.Interface{Name: it.Name, MAC: it.HardwareAddr, Addrs: addrs})
	}
	return hi, nil
}

func isLoopback(it psnet.InterfaceStat) bool {
	for _, f := range it.Flags {
		if strings.EqualFold(f, "loopback") {
			return true
		}
	}
	return false
}

func defaultSources() sources {
	return sources{
		cpuPercent:    cpu.PercentWithContext,
		virtualMemory: mem.VirtualMemoryWithContext,
		partitions:    disk.PartitionsWithContext,
		diskUsage:     disk.UsageWithContext,
		ioCounters:    psnet.IOCountersWithContext,
		interfaces:    psnet.InterfacesWithContext,
	}
}
