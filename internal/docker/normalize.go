package docker

import "hawkmon/internal/models"

// NormalizeStats converts one stats sample into CPU percent (relative to a
// single core, as `docker stats` shows it) and memory usage net of page cache.
func NormalizeStats(id, name string, s Stats) models.ContainerUsage {
	var cpuPct float64
	sysDelta := float64(s.CPUStats.SystemCPUUsage) - float64(s.PreCPUStats.SystemCPUUsage)
	cpuDelta := float64(s.CPUStats.CPUUsage.TotalUsage) - float64(s.PreCPUStats.CPUUsage.TotalUsage)
	cpus := float64(s.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(s.CPUStats.CPUUsage.PercpuUsage))
		if cpus == 0 {
			cpus = 1
		}
	}
	if sysDelta > 0 && cpuDelta >= 0 {
		cpuPct = (cpuDelta / sysDelta) * cpus * 100
	}

	used := s.MemoryStats.Usage
	// cgroup v2 reports inactive_file, v1 reports cache
	cache := s.MemoryStats.Stats["inactive_file"]
	if cache == 0 {
		cache = s.MemoryStats.Stats["cache"]
	}
	if cache < used {
		used -= cache
	}
	return models.ContainerUsage{
		ID:            id,
		Name:          name,
		CPUPct:        cpuPct,
		MemUsedBytes:  used,
		MemLimitBytes: s.MemoryStats.Limit,
	}
}
