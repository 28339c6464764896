package trial

import "testing"

func TestClassify_RuleTable(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	tests := []struct {
		name string
		ui   UIState
		sig  *Signals
		want Classification
	}{
		{"errored", UIErrored, nil, Inconclusive},
		{"timed out", UITimedOut, nil, Inconclusive},
		{"errored with signals ignored", UIErrored, &Signals{ContentMatch: MatchFull}, Inconclusive},
		{"blocked", UIBlocked, nil, HardBlock},
		{"blocked with stale signals", UIBlocked, &Signals{BlurRatio: 0.1}, HardBlock},
		{"generated missing signals", UIGenerated, nil, Inconclusive},
		{"heavy blur", UIGenerated, &Signals{BlurRatio: 0.9, ContentMatch: MatchFull}, SoftBlock},
		{"heavy blur exactly at threshold", UIGenerated, &Signals{BlurRatio: 0.6, ContentMatch: MatchFull}, SoftBlock},
		{"just under heavy threshold with match", UIGenerated, &Signals{BlurRatio: 0.59, ContentMatch: MatchPartial}, PartialSuccess},
		{"some blur full match", UIGenerated, &Signals{BlurRatio: 0.2, ContentMatch: MatchFull}, PartialSuccess},
		{"some blur no match", UIGenerated, &Signals{BlurRatio: 0.2, ContentMatch: MatchNone}, PartialSuccess},
		{"clear full match", UIGenerated, &Signals{BlurRatio: 0, ContentMatch: MatchFull}, FullSuccess},
		{"clear partial match", UIGenerated, &Signals{BlurRatio: 0, ContentMatch: MatchPartial}, PartialSuccess},
		{"clear no match", UIGenerated, &Signals{BlurRatio: 0, ContentMatch: MatchNone}, PartialSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.ui, tt.sig)
			if got != tt.want {
				t.Errorf("Classify(%s, %+v) = %s, want %s", tt.ui, tt.sig, got, tt.want)
			}
		})
	}
}

// Classify must be a pure function: the same inputs repeated yield the same
// label, for every cell of the rule table.
func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(Thresholds{HeavyBlurRatio: 0.5})

	states := []UIState{UIGenerated, UIBlocked, UIErrored, UITimedOut}
	matches := []ContentMatch{MatchFull, MatchPartial, MatchNone}
	ratios := []float64{0, 0.25, 0.5, 0.75, 1.0}

	for _, ui := range states {
		for _, m := range matches {
			for _, r := range ratios {
				sig := &Signals{BlurRatio: r, ContentMatch: m}
				first := c.Classify(ui, sig)
				for i := 0; i < 10; i++ {
					if got := c.Classify(ui, sig); got != first {
						t.Fatalf("Classify(%s, blur=%v, match=%s) unstable: %s then %s",
							ui, r, m, first, got)
					}
				}
			}
		}
	}
}

func TestClassify_InjectedThreshold(t *testing.T) {
	strict := NewClassifier(Thresholds{HeavyBlurRatio: 0.1})
	lax := NewClassifier(Thresholds{HeavyBlurRatio: 0.9})

	sig := &Signals{BlurRatio: 0.5, ContentMatch: MatchFull}
	if got := strict.Classify(UIGenerated, sig); got != SoftBlock {
		t.Errorf("strict threshold: got %s, want %s", got, SoftBlock)
	}
	if got := lax.Classify(UIGenerated, sig); got != PartialSuccess {
		t.Errorf("lax threshold: got %s, want %s", got, PartialSuccess)
	}
}
