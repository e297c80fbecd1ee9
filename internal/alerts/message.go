package alerts

import (
	"fmt"
	"strings"
)

const (
	gb = 1024 * 1024 * 1024
	mb = 1024 * 1024
)

// Reading is one scalar derived from a snapshot, plus the raw byte counts
// some messages quote.
type Reading struct {
	Key        Key
	Value      float64
	UsedBytes  uint64
	TotalBytes uint64
}

type typeLabel struct {
	title  string
	phrase string
}

var labels = map[MetricType]typeLabel{
	TypeCPU:             {"Cpu", "CPU usage"},
	TypeMemory:          {"Memory", "Memory usage"},
	TypeDisk:            {"Disk", "Disk usage"},
	TypeNetwork:         {"Network", "Network traffic"},
	TypeContainerCPU:    {"Container CPU", "Container CPU usage"},
	TypeContainerMemory: {"Container Memory", "Container memory usage"},
}

func labelFor(t MetricType) typeLabel {
	if l, ok := labels[t]; ok {
		return l
	}
	s := string(t)
	if s == "" {
		return typeLabel{"Unknown", "unknown usage"}
	}
	return typeLabel{strings.ToUpper(s[:1]) + s[1:], s + " usage"}
}

// Message builds the subject and body announcing tr for r.
func Message(r Reading, tr Transition) (subject, body string) {
	t := r.Key.Type()
	l := labelFor(t)
	word := "alert"
	subject = fmt.Sprintf("[🚨 HawkSysmon Alert - %s Usage Exceeded Threshold]", l.title)
	if tr == TransitionCleared {
		word = "recovered"
		subject = fmt.Sprintf("[✅ HawkSysmon Alert - %s Usage Recovered]", l.title)
	}

	var b strings.Builder
	b.WriteString(l.phrase)
	b.WriteString(" ")
	b.WriteString(word)
	if inst := r.Key.Instance(); inst != "" {
		fmt.Fprintf(&b, " (%s)", inst)
	}
	b.WriteString(": ")
	switch t {
	case TypeNetwork:
		fmt.Fprintf(&b, "Usage %.2f MB", r.Value)
	case TypeMemory:
		fmt.Fprintf(&b, "%.2f%% (%.2f GB / %.2f GB)", r.Value, float64(r.UsedBytes)/gb, float64(r.TotalBytes)/gb)
	case TypeContainerMemory:
		fmt.Fprintf(&b, "%.2f%% (%.2f MB / %.2f MB)", r.Value, float64(r.UsedBytes)/mb, float64(r.TotalBytes)/mb)
	default:
		fmt.Fprintf(&b, "%.2f%%", r.Value)
	}
	return subject, b.String()
}
