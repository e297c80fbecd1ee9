package models

import "time"

// Snapshot is one sampling cycle. Nil or empty fields mean the sub-query
// that feeds them failed or was disabled for this cycle.
type Snapshot struct {
	TS         time.Time
	CPUPct     *float64
	Memory     *MemoryUsage
	Disks      []DiskUsage
	Networks   []NetworkIO
	Containers []ContainerUsage
}

type MemoryUsage struct {
	UsedBytes  uint64
	TotalBytes uint64
}

type DiskUsage struct {
	FS         string
	Mountpoint string
	UsedBytes  uint64
	SizeBytes  uint64
}

// NetworkIO carries the bytes moved since the previous cycle.
type NetworkIO struct {
	Interface string
	TXBytes   uint64
	RXBytes   uint64
}

type ContainerUsage struct {
	ID            string
	Name          string
	CPUPct        float64
	MemUsedBytes  uint64
	MemLimitBytes uint64
}

// Empty reports whether no sub-query produced a reading.
func (s Snapshot) Empty() bool {
	return s.CPUPct == nil && s.Memory == nil && len(s.Disks) == 0 && len(s.Networks) == 0 && len(s.Containers) == 0
}

type HostInfo struct {
	Hostname   string
	OS         string
	Platform   string
	Version    string
	Arch       string
	Kernel     string
	Interfaces []Interface
}

type Interface struct {
	Name  string
	MAC   string
	Addrs []string
}

type AlertEvent struct {
	ID         string
	MetricKey  string
	MetricType string
	Transition string
	Value      float64
	Threshold  float64
	Subject    string
	Body       string
	TS         time.Time
}

type NotificationEvent struct {
	Channel  string
	Subject  string
	Status   string
	Attempts int
	LastErr  string
	SentAt   *time.Time
}
