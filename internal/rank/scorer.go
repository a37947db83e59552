package rank

import "jobpipe-engine/internal/domain"

// Scorer computes a relevance score for a posting. Implementations must be
// deterministic for a fixed posting, profile and clock reading.
type Scorer interface {
	Score(p domain.Posting) domain.ScoreResult
}
