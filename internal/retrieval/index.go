// Package retrieval implements a TF-IDF vector space over historical error
// messages and answers nearest-neighbour queries by cosine similarity.
package retrieval

import (
	"math"
	"sort"
	"sync/atomic"
)

// EmptyCorpusDocument stands in for an empty corpus so queries always have
// something to rank.
const EmptyCorpusDocument = "No previous error logs available."

// Match is one ranked document.
type Match struct {
	Index int     `json:"index"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

type term struct {
	id     int
	weight float64
}

// vector is a sparse, L2-normalized term vector sorted by term id.
type vector []term

func (v vector) dot(other vector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v) && j < len(other) {
		switch {
		case v[i].id == other[j].id:
			sum += v[i].weight * other[j].weight
			i++
			j++
		case v[i].id < other[j].id:
			i++
		default:
			j++
		}
	}
	return sum
}

// snapshot is an immutable fitted corpus. Documents and vectors always
// belong to the same build.
type snapshot struct {
	generation uint64
	docs       []string
	vocab      map[string]int
	idf        []float64
	vectors    []vector
}

// Index holds the current snapshot. Build swaps it atomically; every query
// reads exactly one snapshot.
type Index struct {
	current    atomic.Pointer[snapshot]
	generation atomic.Uint64
}

// NewIndex returns an index fitted to corpus.
func NewIndex(corpus []string) *Index {
	idx := &Index{}
	idx.Build(corpus)
	return idx
}

// Build fits a new snapshot to corpus and makes it current.
func (idx *Index) Build(corpus []string) {
	docs := make([]string, len(corpus))
	copy(docs, corpus)
	if len(docs) == 0 {
		docs = []string{EmptyCorpusDocument}
	}

	snap := fit(docs)
	snap.generation = idx.generation.Add(1)
	idx.current.Store(snap)
}

// Generation increases by one on every Build.
func (idx *Index) Generation() uint64 {
	return idx.load().generation
}

// Size is the number of documents in the current snapshot.
func (idx *Index) Size() int {
	return len(idx.load().docs)
}

// Query returns the text of the k most similar documents, most similar first.
func (idx *Index) Query(text string, k int) []string {
	matches := idx.Search(text, k)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out
}

// Search ranks documents by cosine similarity to text. Ties keep corpus
// order. k larger than the corpus returns every document; k <= 0 returns none.
func (idx *Index) Search(text string, k int) []Match {
	if k <= 0 {
		return []Match{}
	}
	snap := idx.load()

	q := snap.transform(text)
	matches := make([]Match, len(snap.docs))
	for i, doc := range snap.docs {
		matches[i] = Match{Index: i, Text: doc, Score: q.dot(snap.vectors[i])}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func (idx *Index) load() *snapshot {
	snap := idx.current.Load()
	if snap == nil {
		idx.Build(nil)
		snap = idx.current.Load()
	}
	return snap
}

func fit(docs []string) *snapshot {
	vocab := make(map[string]int)
	counts := make([]map[string]int, len(docs))
	df := make(map[string]int)

	for i, doc := range docs {
		tf := make(map[string]int)
		for _, tok := range Tokenize(doc) {
			tf[tok]++
		}
		for tok := range tf {
			df[tok]++
		}
		counts[i] = tf
	}

	terms := make([]string, 0, len(df))
	for tok := range df {
		terms = append(terms, tok)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	idf := make([]float64, len(terms))
	for id, tok := range terms {
		vocab[tok] = id
		idf[id] = math.Log((1+n)/(1+float64(df[tok]))) + 1
	}

	snap := &snapshot{docs: docs, vocab: vocab, idf: idf}
	snap.vectors = make([]vector, len(docs))
	for i, tf := range counts {
		snap.vectors[i] = snap.weigh(tf)
	}
	return snap
}

// transform vectorizes text with the fitted vocabulary. Unknown terms are dropped.
func (s *snapshot) transform(text string) vector {
	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		if _, ok := s.vocab[tok]; ok {
			tf[tok]++
		}
	}
	return s.weigh(tf)
}

func (s *snapshot) weigh(tf map[string]int) vector {
	v := make(vector, 0, len(tf))
	var norm float64
	for tok, count := range tf {
		id := s.vocab[tok]
		w := float64(count) * s.idf[id]
		v = append(v, term{id: id, weight: w})
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i].weight /= norm
		}
	}
	sort.Slice(v, func(i, j int) bool { return v[i].id < v[j].id })
	return v
}
