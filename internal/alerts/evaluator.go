package alerts

type State int

const (
	StateNormal State = iota
	StateAlerting
)

func (s State) String() string {
	if s == StateAlerting {
		return "alerting"
	}
	return "normal"
}

type Transition int

const (
	TransitionNone Transition = iota
	TransitionRaised
	TransitionCleared
)

func (t Transition) String() string {
	switch t {
	case TransitionRaised:
		return "raised"
	case TransitionCleared:
		return "cleared"
	default:
		return "none"
	}
}

// Record is the hysteresis state of one metric key.
type Record struct {
	ConsecutiveBreaches int
	State               State
}

// Evaluate applies one sample to rec. A breach is value > Threshold. The
// Raised transition fires only on the cycle where the streak reaches
// RequiredCycles; a single non-breach clears.
func Evaluate(value float64, cfg MetricConfig, rec Record) (Record, Transition) {
	if value > cfg.Threshold {
		rec.ConsecutiveBreaches++
		if rec.ConsecutiveBreaches == cfg.RequiredCycles && rec.State == StateNormal {
			rec.State = StateAlerting
			return rec, TransitionRaised
		}
		return rec, TransitionNone
	}
	rec.ConsecutiveBreaches = 0
	if rec.State == StateAlerting {
		rec.State = StateNormal
		return rec, TransitionCleared
	}
	return rec, TransitionNone
}
