// Package limits holds the static catalog of limit definitions shared by the
// trigger-level and entity-level rate limit collections.
package limits

import "time"

// Labels of the built-in common limits.
const (
	// LabelScope caps activations per scope for the trigger's lifetime.
	LabelScope = "scope"
	// LabelMinute caps activations within a sliding one-minute window.
	LabelMinute = "minute"
)

// Definition describes one limit's policy. Finite limits permanently retire a
// trigger once their cap is reached. Interval limits reset after the interval
// elapses. Common limits count activations regardless of event value.
type Definition struct {
	Label    string
	Finite   bool
	Interval time.Duration
	Common   bool
}

var builtin = map[string]Definition{
	LabelScope:  {Label: LabelScope, Finite: true, Common: true},
	LabelMinute: {Label: LabelMinute, Interval: time.Minute, Common: true},
}

// Builtin returns the common limits every activation contributes to.
func Builtin() []Definition {
	return []Definition{builtin[LabelScope], builtin[LabelMinute]}
}

// Lookup resolves a configured limit label to its definition. Labels outside
// the built-in set name an event: those limits are finite and keyed by
// (event, value).
func Lookup(label string) Definition {
	if def, ok := builtin[label]; ok {
		return def
	}
	return Definition{Label: label, Finite: true}
}

// CounterKey names the counter a contribution lands in. Common limits share
// one counter per label; event limits keep one counter per distinct value.
func CounterKey(def Definition, value string) string {
	if def.Common || value == "" {
		return def.Label
	}
	return def.Label + "/" + value
}
