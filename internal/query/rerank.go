package query

import (
	"fmt"
	"math"
	"sort"

	"github.com/ziadkadry99/codesearch/internal/vectordb"
)

// Weights scores a candidate as a weighted combination of its
// similarity and payload-derived features. Every field but Similarity
// is normalized to roughly [0,1] before weighting.
type Weights struct {
	Similarity    float64
	Recency       float64 // lower git.age_days (days since first commit) scores higher; git.last_modified_at is not read
	Churn         float64 // higher git.commit_count scores higher
	Age           float64 // older git.age_days scores higher (techDebt/securityAudit presets)
	Documentation float64 // chunk_type == documentation / is_documentation scores higher
	ImportOverlap float64 // shared import path with other top candidates
}

// presets tabulates the named rerank weight combinations.
var presets = map[string]Weights{
	"relevance":      {Similarity: 1.0},
	"recent":         {Similarity: 0.6, Recency: 0.4},
	"stable":         {Similarity: 0.6, Recency: -0.4},
	"techDebt":       {Similarity: 0.4, Age: 0.3, Churn: 0.3},
	"hotspots":       {Similarity: 0.3, Churn: 0.5, Recency: 0.2},
	"codeReview":     {Similarity: 0.5, Recency: 0.3, Churn: 0.2},
	"onboarding":     {Similarity: 0.5, Documentation: 0.5},
	"securityAudit":  {Similarity: 0.5, Churn: 0.3, Age: 0.2},
	"refactoring":    {Similarity: 0.4, Churn: 0.4, ImportOverlap: 0.2},
	"ownership":      {Similarity: 0.5, Churn: 0.3, Recency: 0.2},
	"impactAnalysis": {Similarity: 0.3, ImportOverlap: 0.4, Churn: 0.3},
}

// resolveWeights looks up a named preset, or returns custom if name is
// "custom" and custom is non-nil.
func resolveWeights(name string, custom *Weights) (Weights, error) {
	if name == "custom" {
		if custom == nil {
			return Weights{}, fmt.Errorf("rerank \"custom\" requires weights")
		}
		return *custom, nil
	}
	w, ok := presets[name]
	if !ok {
		return Weights{}, fmt.Errorf("unknown rerank preset %q", name)
	}
	return w, nil
}

// rerank re-scores results in place (sets Similarity to the final
// blended score) and sorts them descending by that score. A
// Similarity-only weight set (the "relevance" preset) is a no-op
// re-sort of the store's own ordering.
func rerank(results []vectordb.SearchResult, w Weights) {
	if len(results) == 0 {
		return
	}

	maxCommits, maxAge := 1, 1
	for _, r := range results {
		if r.Payload.Git == nil {
			continue
		}
		if r.Payload.Git.CommitCount > maxCommits {
			maxCommits = r.Payload.Git.CommitCount
		}
		if r.Payload.Git.AgeDays > maxAge {
			maxAge = r.Payload.Git.AgeDays
		}
	}

	importCounts := make(map[string]int)
	for _, r := range results {
		for _, p := range r.Payload.ImportPaths {
			importCounts[p]++
		}
	}

	type scored struct {
		result vectordb.SearchResult
		score  float64
	}
	pairs := make([]scored, len(results))
	for i, r := range results {
		pairs[i] = scored{result: r, score: score(r, w, maxCommits, maxAge, importCounts, len(results))}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	for i, p := range pairs {
		results[i] = p.result
		results[i].Similarity = float32(p.score)
	}
}

func score(r vectordb.SearchResult, w Weights, maxCommits, maxAge int, importCounts map[string]int, total int) float64 {
	s := w.Similarity * float64(r.Similarity)

	if r.Payload.Git != nil {
		if w.Recency != 0 {
			recency := recencyScore(r.Payload.Git.AgeDays, maxAge)
			s += w.Recency * recency
		}
		if w.Churn != 0 && maxCommits > 0 {
			s += w.Churn * (float64(r.Payload.Git.CommitCount) / float64(maxCommits))
		}
		if w.Age != 0 && maxAge > 0 {
			s += w.Age * (float64(r.Payload.Git.AgeDays) / float64(maxAge))
		}
	}

	if w.Documentation != 0 && (r.Payload.IsDocumentation || r.Payload.ChunkType == vectordb.ChunkTypeDoc) {
		s += w.Documentation
	}

	if w.ImportOverlap != 0 && total > 1 {
		var overlap int
		for _, p := range r.Payload.ImportPaths {
			overlap += importCounts[p] - 1
		}
		if overlap > 0 {
			s += w.ImportOverlap * math.Min(1.0, float64(overlap)/float64(total-1))
		}
	}

	return s
}

// recencyScore maps ageDays to [0,1], with 0 days old scoring 1 and
// maxAge (or older) scoring 0.
func recencyScore(ageDays, maxAge int) float64 {
	if maxAge <= 0 {
		return 1
	}
	v := 1 - float64(ageDays)/float64(maxAge)
	if v < 0 {
		v = 0
	}
	return v
}
