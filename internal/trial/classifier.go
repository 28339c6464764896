package trial

// Thresholds are the injected classification thresholds. They are
// configuration, not constants, so the rule table is testable independent of
// any particular values.
type Thresholds struct {
	// HeavyBlurRatio is the blur ratio at or above which a generated
	// artifact counts as soft-blocked.
	HeavyBlurRatio float64
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{HeavyBlurRatio: 0.6}
}

// Classifier turns an observed UI state plus derived signals into a
// classification. Pure and deterministic: identical inputs always yield the
// same label.
type Classifier struct {
	Thresholds Thresholds
}

// NewClassifier returns a classifier with the given thresholds.
func NewClassifier(th Thresholds) *Classifier {
	return &Classifier{Thresholds: th}
}

// Classify applies the rule table in priority order; first match wins.
//
//  1. ERRORED or TIMED_OUT            -> INCONCLUSIVE
//  2. BLOCKED (nothing produced)      -> HARD_BLOCK
//  3. GENERATED, signals missing      -> INCONCLUSIVE (a failed extraction
//     must never read as a clear result)
//  4. blur_ratio >= heavy threshold   -> SOFT_BLOCK
//  5. blur_ratio > 0, match != NONE   -> PARTIAL_SUCCESS
//  6. blur_ratio == 0, match == FULL  -> FULL_SUCCESS
//  7. otherwise                       -> PARTIAL_SUCCESS
func (c *Classifier) Classify(ui UIState, sig *Signals) Classification {
	switch ui {
	case UIErrored, UITimedOut:
		return Inconclusive
	case UIBlocked:
		return HardBlock
	}
	if sig == nil {
		return Inconclusive
	}
	switch {
	case sig.BlurRatio >= c.Thresholds.HeavyBlurRatio:
		return SoftBlock
	case sig.BlurRatio > 0 && sig.ContentMatch != MatchNone:
		return PartialSuccess
	case sig.BlurRatio == 0 && sig.ContentMatch == MatchFull:
		return FullSuccess
	default:
		return PartialSuccess
	}
}
