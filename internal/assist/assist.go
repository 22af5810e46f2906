package assist

import "context"

// PowerTier labels how much compute a request should be routed to.
type PowerTier string

// Power tiers, cheapest first.
const (
	TierLow    PowerTier = "low"
	TierMedium PowerTier = "medium"
	TierHigh   PowerTier = "high"
)

// QualityScorer reports the current input signal quality as an opaque
// score in [0, 1]. Higher is better.
type QualityScorer interface {
	QualityScore(ctx context.Context) (float64, error)
}

// TierClassifier maps a piece of free text to a power tier.
type TierClassifier interface {
	Classify(ctx context.Context, text string) (PowerTier, error)
}
