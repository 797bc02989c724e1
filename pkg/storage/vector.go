package storage

import (
	"math"
	"sort"
)

// CosineSimilarity returns the cosine of the angle between two embedding
// vectors, in [-1, 1]. Mismatched lengths and zero vectors score 0 so
// that malformed embeddings rank last instead of failing a search.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankChunks scores candidates against the query embedding and returns the
// topK best matches in descending score order, chunk ID breaking ties.
// It is the shared ranking path for stores that keep embeddings outside
// the database engine.
func RankChunks(query []float32, candidates []ScoredChunk, topK int) []ScoredChunk {
	if topK <= 0 || len(candidates) == 0 {
		return nil
	}

	scored := make([]ScoredChunk, len(candidates))
	for i, c := range candidates {
		c.Score = CosineSimilarity(query, c.Chunk.Embedding)
		scored[i] = c
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.ID < scored[j].Chunk.ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
