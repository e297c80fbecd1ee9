// Package alerts is the threshold alerting core: a per-metric hysteresis
// state machine (Evaluate), the registry that owns each metric's record
// across cycles, and the Engine that applies both to a sampled snapshot and
// routes transitions to a Notifier.
//
// A metric raises after RequiredCycles consecutive breaches and clears on the
// first sample that is not a breach.
package alerts
