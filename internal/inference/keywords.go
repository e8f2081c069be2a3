package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/gonum/floats"

	"textdigest/internal/domain"
)

const (
	maxKeyphraseWords = 2

	// maxDocumentEmbeddingChars keeps the document inside embedding model
	// context windows. Candidates still come from the whole text.
	maxDocumentEmbeddingChars = 8000
)

var tokenRe = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// KeyBERT ranks candidate phrases by the cosine similarity of their
// embeddings to the embedding of the whole document.
type KeyBERT struct {
	embedder  EmbeddingModel
	topN      int
	maxWords  int
	stopWords map[string]struct{}
}

func NewKeyBERT(embedder EmbeddingModel) *KeyBERT {
	return &KeyBERT{
		embedder:  embedder,
		topN:      MaxKeywords,
		maxWords:  maxKeyphraseWords,
		stopWords: englishStopWords,
	}
}

type scoredPhrase struct {
	phrase string
	score  float64
}

// ExtractKeywords returns up to MaxKeywords phrases in descending relevance.
func (k *KeyBERT) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	candidates := k.Candidates(text)
	if len(candidates) == 0 {
		return []string{}, nil
	}

	inputs := make([]string, 0, len(candidates)+1)
	inputs = append(inputs, domain.TruncateRunes(text, maxDocumentEmbeddingChars))
	inputs = append(inputs, candidates...)

	vectors, err := k.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(vectors) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(vectors))
	}

	docVector := vectors[0]
	scored := make([]scoredPhrase, len(candidates))
	for i, candidate := range candidates {
		score, err := cosine(docVector, vectors[i+1])
		if err != nil {
			return nil, fmt.Errorf("score %q: %w", candidate, err)
		}
		scored[i] = scoredPhrase{phrase: candidate, score: score}
	}

	slices.SortStableFunc(scored, func(a, b scoredPhrase) int {
		return cmp.Compare(b.score, a.score)
	})

	keywords := make([]string, 0, min(k.topN, len(scored)))
	for _, s := range scored[:min(k.topN, len(scored))] {
		keywords = append(keywords, s.phrase)
	}

	return keywords, nil
}

// Candidates lists the distinct 1..maxWords word phrases of text in
// alphabetical order. Stop words are removed before phrases are formed.
func (k *KeyBERT) Candidates(text string) []string {
	lower := cases.Lower(language.Und).String(text)

	var tokens []string
	for _, token := range tokenRe.FindAllString(lower, -1) {
		if _, stop := k.stopWords[token]; stop {
			continue
		}
		tokens = append(tokens, token)
	}

	seen := make(map[string]struct{})
	var candidates []string

	for n := 1; n <= k.maxWords; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			phrase := strings.Join(tokens[i:i+n], " ")
			if _, ok := seen[phrase]; ok {
				continue
			}
			seen[phrase] = struct{}{}
			candidates = append(candidates, phrase)
		}
	}

	slices.Sort(candidates)

	return candidates
}

func cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, errors.New("embedding dimensions differ")
	}

	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return floats.Dot(a, b) / (normA * normB), nil
}
