package alerts

import "strings"

type MetricType string

const (
	TypeCPU             MetricType = "cpu"
	TypeMemory          MetricType = "memory"
	TypeDisk            MetricType = "disk"
	TypeNetwork         MetricType = "network"
	TypeContainerCPU    MetricType = "container_cpu"
	TypeContainerMemory MetricType = "container_memory"
)

// Types lists every metric type in evaluation order.
var Types = []MetricType{TypeDisk, TypeNetwork, TypeContainerCPU, TypeContainerMemory, TypeCPU, TypeMemory}

// Key identifies independently tracked alert state: "cpu", "memory", or
// "<type>:<instance>" for instances discovered at runtime.
type Key string

func FixedKey(t MetricType) Key { return Key(t) }

func InstanceKey(t MetricType, instance string) Key {
	return Key(string(t) + ":" + instance)
}

func (k Key) Type() MetricType {
	t, _, _ := strings.Cut(string(k), ":")
	return MetricType(t)
}

func (k Key) Instance() string {
	_, inst, _ := strings.Cut(string(k), ":")
	return inst
}

// MetricConfig applies to every key of one metric type.
type MetricConfig struct {
	Threshold      float64
	RequiredCycles int
	Enabled        bool
}

type Thresholds map[MetricType]MetricConfig

func (t Thresholds) lookup(mt MetricType) (MetricConfig, bool) {
	c, ok := t[mt]
	if !ok || !c.Enabled {
		return MetricConfig{}, false
	}
	if c.RequiredCycles < 1 {
		c.RequiredCycles = 1
	}
	return c, true
}
