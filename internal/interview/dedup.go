package interview

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/echocoach/pkg/store"
)

const (
	defaultSimilarityThreshold = 0.92
	defaultDistanceThreshold   = 0.08
)

// normalize lower-cases s, drops punctuation and collapses whitespace so that
// "Tell me about yourself!" and "tell me about  yourself" compare equal.
func normalize(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		case unicode.IsSpace(r):
			space = true
		}
	}
	return sb.String()
}

// duplicate describes why a candidate question was rejected.
type duplicate struct {
	Of     string
	Method string
	Score  float64
}

// textDuplicate returns the first text in known whose Jaro-Winkler similarity
// to candidate reaches threshold.
func textDuplicate(candidate string, known []string, threshold float64) (duplicate, bool) {
	c := normalize(candidate)
	if c == "" {
		return duplicate{}, false
	}
	for _, k := range known {
		n := normalize(k)
		if n == "" {
			continue
		}
		if score := matchr.JaroWinkler(c, n, false); score >= threshold {
			return duplicate{Of: k, Method: "jaro-winkler", Score: score}, true
		}
	}
	return duplicate{}, false
}

// checkDuplicate tests candidate against known texts and, when an embeddings
// provider is configured, against the closest stored question vector. The
// returned embedding is stored with the question when it is accepted.
func (s *Service) checkDuplicate(ctx context.Context, candidate string, known []string) ([]float32, duplicate, bool, error) {
	if d, ok := textDuplicate(candidate, known, s.similarity); ok {
		return nil, d, true, nil
	}
	if s.embedder == nil {
		return nil, duplicate{}, false, nil
	}

	vec, err := s.embedder.Embed(ctx, candidate)
	if err != nil {
		// Dedup is best effort; the text check already passed.
		s.log.Warn("embedding generated question failed", "err", err)
		return nil, duplicate{}, false, nil
	}
	nearest, err := s.store.SimilarQuestions(ctx, vec, 1)
	if err != nil {
		return nil, duplicate{}, false, fmt.Errorf("interview: similar questions: %w", err)
	}
	if len(nearest) > 0 && nearest[0].Distance <= s.distance {
		return vec, duplicate{Of: nearest[0].Question.Text, Method: "embedding", Score: nearest[0].Distance}, true, nil
	}
	return vec, duplicate{}, false, nil
}

// bankTexts returns the texts of every stored question in category and
// difficulty.
func (s *Service) bankTexts(ctx context.Context, category, difficulty string) ([]string, error) {
	qs, err := s.store.FindQuestions(ctx, store.QuestionFilter{Category: category, Difficulty: difficulty})
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(qs))
	for i, q := range qs {
		texts[i] = q.Text
	}
	return texts, nil
}
