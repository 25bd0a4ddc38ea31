package evaluator

import (
	"context"
	"errors"
	"testing"

	"github.com/kristobalus/sport-triggers-sub000/internal/model"
)

// fakeAggregator returns a fixed result or error.
type fakeAggregator struct {
	result float64
	err    error
	calls  int
}

func (f *fakeAggregator) Aggregate(_ context.Context, _ *model.ScopeSnapshot, _ *model.ConditionOption) (float64, error) {
	f.calls++
	return f.result, f.err
}

func snapshotWith(options map[string]string) *model.ScopeSnapshot {
	return &model.ScopeSnapshot{
		ID:         "snap-1",
		Datasource: "sportradar",
		Scope:      "game",
		ScopeID:    "g-1",
		Options:    options,
	}
}

func TestEvaluate_PrimaryOnly(t *testing.T) {
	cond := &model.Condition{
		Event: "home_score", Compare: model.CompareGe,
		Targets: []string{"30"}, Type: model.TypeNumber,
	}

	tests := []struct {
		name    string
		options map[string]string
		want    bool
	}{
		{name: "match", options: map[string]string{"home_score": "31"}, want: true},
		{name: "comparison fails", options: map[string]string{"home_score": "29"}, want: false},
		{name: "event absent", options: map[string]string{"away_score": "31"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(context.Background(), cond, snapshotWith(tt.options), nil)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_OptionsAreConjunctive(t *testing.T) {
	cond := &model.Condition{
		Event: "home_score", Compare: model.CompareGe,
		Targets: []string{"30"}, Type: model.TypeNumber,
		Options: []model.ConditionOption{
			{Event: "quarter", Compare: model.CompareEq, Targets: []string{"4"}, Type: model.TypeNumber},
			{Event: "game_state", Compare: model.CompareEq, Targets: []string{"live"}, Type: model.TypeString},
		},
	}

	tests := []struct {
		name    string
		options map[string]string
		want    bool
	}{
		{
			name:    "all match",
			options: map[string]string{"home_score": "30", "quarter": "4", "game_state": "live"},
			want:    true,
		},
		{
			name:    "one option fails",
			options: map[string]string{"home_score": "30", "quarter": "3", "game_state": "live"},
			want:    false,
		},
		{
			name:    "one option event absent",
			options: map[string]string{"home_score": "30", "quarter": "4"},
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(context.Background(), cond, snapshotWith(tt.options), nil)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluate_AggregatedOption(t *testing.T) {
	cond := &model.Condition{
		Options: []model.ConditionOption{
			{
				Event: "team_three_pointer", Compare: model.CompareGe,
				Targets: []string{"3"}, Type: model.TypeNumber,
				Aggregate: &model.AggregateQuery{Kind: model.AggregateOccurrences},
			},
		},
	}
	snap := snapshotWith(map[string]string{"team_three_pointer": "t-1"})

	t.Run("aggregate result replaces fact value", func(t *testing.T) {
		agg := &fakeAggregator{result: 3}
		got, err := Evaluate(context.Background(), cond, snap, agg)
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if !got {
			t.Error("Evaluate() = false, want true for aggregate result 3")
		}
		if agg.calls != 1 {
			t.Errorf("Aggregate() called %d times, want 1", agg.calls)
		}
	})

	t.Run("aggregate below target", func(t *testing.T) {
		got, err := Evaluate(context.Background(), cond, snap, &fakeAggregator{result: 2})
		if err != nil {
			t.Fatalf("Evaluate() error = %v", err)
		}
		if got {
			t.Error("Evaluate() = true, want false for aggregate result 2")
		}
	})

	t.Run("aggregate error propagates", func(t *testing.T) {
		wantErr := errors.New("index unavailable")
		_, err := Evaluate(context.Background(), cond, snap, &fakeAggregator{err: wantErr})
		if !errors.Is(err, wantErr) {
			t.Errorf("Evaluate() error = %v, want wrapping %v", err, wantErr)
		}
	})

	t.Run("missing aggregator is an error", func(t *testing.T) {
		if _, err := Evaluate(context.Background(), cond, snap, nil); err == nil {
			t.Error("Evaluate() error = nil, want error without aggregator")
		}
	})
}
