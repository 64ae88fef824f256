// Package similarity provides pure similarity calculations between content
// descriptors: Jaccard and TF-IDF cosine over topic sets, domain affinity,
// and a weighted multi-factor combination.
package similarity

import (
	"math"

	"github.com/wanderco/drift/internal/content"
)

// Weights defines the component weights for multi-factor similarity.
// The defaults are calibrated design constants; changing them changes
// ranking behavior across the whole engine.
type Weights struct {
	Topic       float64 `json:"topic"`        // Weight for topic similarity (default: 0.50)
	Domain      float64 `json:"domain"`       // Weight for domain affinity (default: 0.15)
	Quality     float64 `json:"quality"`      // Weight for quality closeness (default: 0.20)
	ReadingTime float64 `json:"reading_time"` // Weight for reading-time closeness (default: 0.15)
}

// DefaultWeights returns the default multi-factor similarity weights.
func DefaultWeights() Weights {
	return Weights{
		Topic:       0.50,
		Domain:      0.15,
		Quality:     0.20,
		ReadingTime: 0.15,
	}
}

// readingTimeNormalizer is the minute span over which reading-time
// closeness decays linearly to zero.
const readingTimeNormalizer = 30.0

// Jaccard computes the Jaccard similarity between two topic sets.
// Returns |intersection| / |union|, or 0 if either set is empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// TermFrequency computes per-topic term frequency within an item's topic
// multiset: tf = count / total. Returns an empty map for empty input.
func TermFrequency(topics []string) map[string]float64 {
	tf := make(map[string]float64)
	if len(topics) == 0 {
		return tf
	}

	counts := make(map[string]int)
	for _, t := range topics {
		counts[t]++
	}
	total := float64(len(topics))
	for t, c := range counts {
		tf[t] = float64(c) / total
	}
	return tf
}

// InverseDocumentFrequency computes idf = ln(|corpus| / docsContaining)
// for every topic appearing in the corpus. Topics absent from the corpus
// are simply not present in the returned map (treated as 0 by callers).
func InverseDocumentFrequency(corpus [][]string) map[string]float64 {
	idf := make(map[string]float64)
	if len(corpus) == 0 {
		return idf
	}

	docFreq := make(map[string]int)
	for _, doc := range corpus {
		for t := range toSet(doc) {
			docFreq[t]++
		}
	}

	n := float64(len(corpus))
	for t, df := range docFreq {
		idf[t] = math.Log(n / float64(df))
	}
	return idf
}

// TFIDFVector computes the TF-IDF vector for an item's topics against a
// corpus of topic sets. Only non-zero entries are included.
func TFIDFVector(topics []string, corpus [][]string) map[string]float64 {
	tf := TermFrequency(topics)
	idf := InverseDocumentFrequency(corpus)

	vec := make(map[string]float64)
	for t, f := range tf {
		if w := f * idf[t]; w != 0 {
			vec[t] = w
		}
	}
	return vec
}

// CosineSimilarity computes the cosine similarity between two sparse
// vectors over the union of their keys. Returns 0 when either magnitude
// is 0.
func CosineSimilarity(a, b map[string]float64) float64 {
	var dot, normA, normB float64

	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// DomainSimilarity scores the affinity between two source domains:
// 1.0 for the same domain, 0.5 for related domains (per the optional
// relationship map), 0 otherwise.
func DomainSimilarity(a, b string, related map[string][]string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	for _, r := range related[a] {
		if r == b {
			return 0.5
		}
	}
	return 0
}

// Result holds a multi-factor similarity score with its component
// breakdown for explainability.
type Result struct {
	Overall     float64 `json:"overall"`
	Topic       float64 `json:"topic"`
	Domain      float64 `json:"domain"`
	Quality     float64 `json:"quality"`
	ReadingTime float64 `json:"reading_time"`
}

// MultiFactor computes the weighted similarity between two content items.
// Topic similarity prefers TF-IDF cosine when a corpus is supplied and
// falls back to Jaccard otherwise. Quality closeness is 1 - |qA - qB| and
// reading-time closeness decays linearly over a 30 minute span.
//
// Pass nil weights to use DefaultWeights.
func MultiFactor(a, b *content.Item, corpus [][]string, relatedDomains map[string][]string, weights *Weights) Result {
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}

	var topicSim float64
	if len(corpus) > 0 {
		topicSim = CosineSimilarity(
			TFIDFVector(a.Topics, corpus),
			TFIDFVector(b.Topics, corpus),
		)
	} else {
		topicSim = Jaccard(a.Topics, b.Topics)
	}

	domainSim := DomainSimilarity(a.Domain, b.Domain, relatedDomains)
	qualitySim := 1.0 - math.Abs(a.QualityScore-b.QualityScore)

	readingDiff := math.Abs(float64(a.ReadingTimeMinutes - b.ReadingTimeMinutes))
	readingSim := math.Max(0, 1.0-readingDiff/readingTimeNormalizer)

	return Result{
		Overall: topicSim*w.Topic +
			domainSim*w.Domain +
			qualitySim*w.Quality +
			readingSim*w.ReadingTime,
		Topic:       topicSim,
		Domain:      domainSim,
		Quality:     qualitySim,
		ReadingTime: readingSim,
	}
}

// DefaultMinCooccurrence is the default co-occurrence threshold for
// BuildTopicRelationships.
const DefaultMinCooccurrence = 3

// BuildTopicRelationships derives a topic relationship map from a corpus:
// two topics become mutually related when they co-occur on the same item
// at least minCooccurrence times. Pass minCooccurrence <= 0 to use the
// default threshold.
func BuildTopicRelationships(corpus [][]string, minCooccurrence int) map[string][]string {
	if minCooccurrence <= 0 {
		minCooccurrence = DefaultMinCooccurrence
	}

	type pair struct{ a, b string }
	counts := make(map[pair]int)

	for _, doc := range corpus {
		topics := make([]string, 0, len(doc))
		for t := range toSet(doc) {
			topics = append(topics, t)
		}
		for i := 0; i < len(topics); i++ {
			for j := 0; j < len(topics); j++ {
				if topics[i] == topics[j] {
					continue
				}
				counts[pair{topics[i], topics[j]}]++
			}
		}
	}

	related := make(map[string][]string)
	for p, c := range counts {
		if c >= minCooccurrence {
			related[p.a] = append(related[p.a], p.b)
		}
	}
	return related
}

// toSet deduplicates a topic slice into a set.
func toSet(topics []string) map[string]struct{} {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}
	return set
}
