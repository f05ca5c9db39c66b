// Package scoring implements weighted duplicate scoring of record pairs
// against a matching rule.
package scoring

import (
	"math"
	"sync"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cast"

	"github.com/crmforge/dedupe/pkg/exclusions"
	"github.com/crmforge/dedupe/pkg/extractor"
	"github.com/crmforge/dedupe/pkg/models"
	"github.com/crmforge/dedupe/pkg/similarity"
)

// Score is the outcome of comparing one (source, candidate) pair.
type Score struct {
	ConfidenceScore float64                 `json:"confidence_score"` // 0-100
	Confidence      models.ConfidenceBucket `json:"confidence"`
	Recommendation  models.Recommendation   `json:"recommendation"`
	MatchedFields   []models.MatchedField   `json:"matched_fields"`
	Excluded        bool                    `json:"excluded"`
}

// AlgorithmStats aggregates how often an algorithm produced a field's best
// similarity and the running total it contributed.
type AlgorithmStats struct {
	Uses            int64   `json:"uses"`
	TotalSimilarity float64 `json:"total_similarity"`
}

// Engine scores record pairs. Scoring is deterministic: the same inputs always
// produce the same score and matched fields.
type Engine struct {
	logger ectologger.Logger
	scorer *similarity.Scorer

	mu    sync.Mutex
	stats map[string]*AlgorithmStats
}

// NewEngine creates a new scoring engine
func NewEngine(logger ectologger.Logger) *Engine {
	return &Engine{
		logger: logger,
		scorer: similarity.NewScorer(),
		stats:  make(map[string]*AlgorithmStats),
	}
}

// Score compares a source record to a candidate under the given rule. A nil
// result is never returned; an excluded pair carries Excluded=true and a zero
// score.
func (e *Engine) Score(source, candidate models.Record, rule *models.MatchingRule) *Score {
	if exclusions.Excluded(source, candidate, rule.Exclusions) {
		return &Score{
			Confidence:     models.ConfidenceLow,
			Recommendation: models.RecommendationIgnore,
			Excluded:       true,
		}
	}

	var (
		weightedSum float64
		totalWeight float64
		matched     []models.MatchedField
	)

	for _, cfg := range rule.Fields {
		sourceRaw, sourceOK := fieldValue(source, cfg.Field)
		candidateRaw, candidateOK := fieldValue(candidate, cfg.Field)
		if !sourceOK || !candidateOK {
			continue
		}

		best, algorithm := e.fieldSimilarity(cfg, sourceRaw, candidateRaw)
		if best < cfg.MinimumSimilarity {
			continue
		}

		weight := cfg.Weight
		weightedSum += best * weight
		totalWeight += weight

		matched = append(matched, models.MatchedField{
			Field:          cfg.Field,
			SourceValue:    sourceRaw,
			CandidateValue: candidateRaw,
			Similarity:     best,
			Algorithm:      algorithm,
			Weight:         weight,
			ExactMatch:     best >= 1.0,
		})

		e.recordStat(algorithm, best)
	}

	var total float64
	if totalWeight > 0 {
		total = weightedSum / totalWeight * 100
	}
	total = math.Round(total*100) / 100

	return &Score{
		ConfidenceScore: total,
		Confidence:      confidenceBucket(total),
		Recommendation:  recommend(total, rule.Thresholds),
		MatchedFields:   matched,
	}
}

// fieldSimilarity returns the best similarity across the field's algorithms
// and the algorithm that produced it.
func (e *Engine) fieldSimilarity(cfg models.FieldMatchingConfig, sourceRaw, candidateRaw any) (float64, string) {
	switch cfg.DataType {
	case models.FieldTypeNumber:
		a, errA := cast.ToFloat64E(sourceRaw)
		b, errB := cast.ToFloat64E(candidateRaw)
		if errA == nil && errB == nil {
			tolerance := math.Max(math.Abs(a), math.Abs(b)) * 0.1
			if tolerance == 0 {
				tolerance = 1
			}
			return e.scorer.NumericProximity(a, b, tolerance), "numeric"
		}
	case models.FieldTypeDate:
		a, errA := cast.ToTimeE(sourceRaw)
		b, errB := cast.ToTimeE(candidateRaw)
		if errA == nil && errB == nil {
			return e.scorer.DateProximity(a, b, 30), "date"
		}
	}

	sourceVal := similarity.Normalize(cast.ToString(sourceRaw), cfg)
	candidateVal := similarity.Normalize(cast.ToString(candidateRaw), cfg)

	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = defaultAlgorithms(cfg.DataType)
	}

	best := 0.0
	bestAlgorithm := algorithms[0]
	for _, name := range algorithms {
		sim := e.scorer.Score(name, sourceVal, candidateVal)
		if sim > best {
			best = sim
			bestAlgorithm = name
		}
	}

	return best, bestAlgorithm
}

// Stats returns a copy of the per-algorithm running totals.
func (e *Engine) Stats() map[string]AlgorithmStats {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]AlgorithmStats, len(e.stats))
	for name, s := range e.stats {
		out[name] = *s
	}
	return out
}

func (e *Engine) recordStat(algorithm string, sim float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.stats[algorithm]
	if !ok {
		s = &AlgorithmStats{}
		e.stats[algorithm] = s
	}
	s.Uses++
	s.TotalSimilarity += sim
}

// fieldValue looks up a matching field, which may be a nested or array path
// like "address.city" or "emails[0]".
func fieldValue(record models.Record, field string) (any, bool) {
	v, ok := extractor.Extract(map[string]any(record), field)
	if !ok || v == nil {
		return nil, false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return nil, false
	}
	return v, true
}

func defaultAlgorithms(dataType models.FieldDataType) []string {
	switch dataType {
	case models.FieldTypeEmail:
		return []string{"email"}
	case models.FieldTypePhone:
		return []string{"phone"}
	case models.FieldTypeString:
		return []string{"jaroWinkler"}
	default:
		return []string{"exact"}
	}
}

func confidenceBucket(score float64) models.ConfidenceBucket {
	switch {
	case score >= 90:
		return models.ConfidenceVeryHigh
	case score >= 75:
		return models.ConfidenceHigh
	case score >= 50:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

func recommend(score float64, thresholds models.MatchingThresholds) models.Recommendation {
	switch {
	case score >= thresholds.AutoMerge:
		return models.RecommendationAutoMerge
	case score >= thresholds.HumanReview:
		return models.RecommendationReview
	default:
		return models.RecommendationIgnore
	}
}
