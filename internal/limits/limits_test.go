package limits

import (
	"testing"
	"time"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		label        string
		wantFinite   bool
		wantInterval time.Duration
		wantCommon   bool
	}{
		{label: LabelScope, wantFinite: true, wantCommon: true},
		{label: LabelMinute, wantInterval: time.Minute, wantCommon: true},
		{label: "player_dunk", wantFinite: true},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			def := Lookup(tt.label)
			if def.Label != tt.label {
				t.Errorf("Lookup(%q).Label = %v", tt.label, def.Label)
			}
			if def.Finite != tt.wantFinite {
				t.Errorf("Lookup(%q).Finite = %v, want %v", tt.label, def.Finite, tt.wantFinite)
			}
			if def.Interval != tt.wantInterval {
				t.Errorf("Lookup(%q).Interval = %v, want %v", tt.label, def.Interval, tt.wantInterval)
			}
			if def.Common != tt.wantCommon {
				t.Errorf("Lookup(%q).Common = %v, want %v", tt.label, def.Common, tt.wantCommon)
			}
		})
	}
}

func TestBuiltin(t *testing.T) {
	defs := Builtin()
	if len(defs) != 2 {
		t.Fatalf("Builtin() returned %d definitions, want 2", len(defs))
	}
	if defs[0].Label != LabelScope || !defs[0].Common {
		t.Errorf("Builtin()[0] = %+v, want the common scope limit", defs[0])
	}
	if defs[1].Label != LabelMinute || defs[1].Interval != time.Minute {
		t.Errorf("Builtin()[1] = %+v, want the one-minute window limit", defs[1])
	}
}

func TestCounterKey(t *testing.T) {
	tests := []struct {
		name  string
		def   Definition
		value string
		want  string
	}{
		{
			name: "common limit ignores value",
			def:  Lookup(LabelScope), value: "ignored", want: "scope",
		},
		{
			name: "event limit keyed by value",
			def:  Lookup("player_dunk"), value: "p-23", want: "player_dunk/p-23",
		},
		{
			name: "event limit without value",
			def:  Lookup("player_dunk"), value: "", want: "player_dunk",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CounterKey(tt.def, tt.value); got != tt.want {
				t.Errorf("CounterKey() = %v, want %v", got, tt.want)
			}
		})
	}
}
