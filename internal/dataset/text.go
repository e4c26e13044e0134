package dataset

import (
	"sort"
	"strings"
	"unicode"
)

// UnknownToken is the id reserved for out-of-vocabulary words.
const UnknownToken = 0

// Vocabulary maps lower-cased words to dense token ids.
type Vocabulary struct {
	ids   map[string]int
	words []string
}

// BuildVocabulary assigns ids to every word in texts, ordered by descending
// frequency then alphabetically. Id 0 is reserved for unknown words.
func BuildVocabulary(texts []string) *Vocabulary {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range Tokenize(text) {
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	v := &Vocabulary{ids: make(map[string]int, len(words)), words: append([]string{"<unk>"}, words...)}
	for i, w := range words {
		v.ids[w] = i + 1
	}
	return v
}

// Size is the number of ids including the unknown token.
func (v *Vocabulary) Size() int {
	return len(v.words)
}

// Encode converts text to token ids stored as float64 model inputs.
func (v *Vocabulary) Encode(text string) []float64 {
	tokens := Tokenize(text)
	out := make([]float64, len(tokens))
	for i, w := range tokens {
		if id, ok := v.ids[w]; ok {
			out[i] = float64(id)
		} else {
			out[i] = UnknownToken
		}
	}
	return out
}

// Tokenize lower-cases text and splits it on anything that is not a letter
// or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
