package debate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lucasnoah/stagecraft/internal/config"
)

// extendThreshold is the contention score at or above which a debate is
// extended for another round. Earlier revisions of the protocol used 0.7;
// 0.5 is current.
const extendThreshold = 0.5

// Recommendations produced by the contention evaluator.
const (
	RecommendExtend     = "extend"
	RecommendSynthesize = "synthesize"
)

// ContentionScore is the evaluator's verdict on one debate round.
type ContentionScore struct {
	Score          float64  `json:"score"`
	Unresolved     []string `json:"unresolved"`
	Recommendation string   `json:"-"`
}

// decide applies the round-extension rule, in priority order: below the
// round minimum always extend; at or above the contention threshold and
// below the round maximum, extend; otherwise synthesize. Reaching the
// round maximum forces synthesis regardless of score.
func decide(round int, score float64, profile config.Profile) string {
	switch {
	case round < profile.MinRounds:
		return RecommendExtend
	case score >= extendThreshold && round < profile.MaxRounds:
		return RecommendExtend
	default:
		return RecommendSynthesize
	}
}

// parseContention extracts the evaluator's JSON verdict from its raw
// output. The evaluator is asked for bare JSON but may wrap it in prose or
// a code fence, so parsing scans for the outermost object.
func parseContention(text string) (*ContentionScore, error) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in evaluator output")
	}

	var cs ContentionScore
	if err := json.Unmarshal([]byte(text[start:end+1]), &cs); err != nil {
		return nil, fmt.Errorf("parse evaluator output: %w", err)
	}
	if cs.Score < 0 || cs.Score > 1 {
		return nil, fmt.Errorf("contention score %v out of range", cs.Score)
	}
	return &cs, nil
}
