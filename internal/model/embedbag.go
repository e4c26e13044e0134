package model

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// EmbedBag classifies token sequences by averaging token embeddings and
// feeding the mean through a dense layer. Inputs hold token ids; ids outside
// the vocabulary map to id 0.
type EmbedBag struct {
	numClasses int
	vocab      int
	dim        int
	embedding  *Param
	fc         *dense
}

// NewEmbedBag constructs the model for a vocabulary of vocab tokens.
func NewEmbedBag(numClasses, vocab, dim int, seed int64) (*EmbedBag, error) {
	if numClasses <= 1 {
		return nil, fmt.Errorf("embedbag: need at least 2 classes (got %d)", numClasses)
	}
	if vocab <= 0 || dim <= 0 {
		return nil, fmt.Errorf("embedbag: vocab and dim must be > 0 (got %d, %d)", vocab, dim)
	}
	rng := rand.New(rand.NewSource(seed))
	emb := NewParam("embedding.weight", vocab, dim)
	for i := range emb.Data {
		emb.Data[i] = rng.NormFloat64()
	}
	return &EmbedBag{
		numClasses: numClasses,
		vocab:      vocab,
		dim:        dim,
		embedding:  emb,
		fc:         newDense("fc", dim, numClasses, rng),
	}, nil
}

func (m *EmbedBag) row(id int, data []float64) []float64 {
	return data[id*m.dim : (id+1)*m.dim]
}

func (m *EmbedBag) tokens(input []float64) []int {
	ids := make([]int, len(input))
	for i, v := range input {
		id := int(v)
		if id < 0 || id >= m.vocab {
			id = 0
		}
		ids[i] = id
	}
	return ids
}

// Forward implements Model.
func (m *EmbedBag) Forward(input []float64) ([]float64, Backward) {
	ids := m.tokens(input)
	mean := make([]float64, m.dim)
	for _, id := range ids {
		floats.Add(mean, m.row(id, m.embedding.Data))
	}
	if len(ids) > 0 {
		floats.Scale(1/float64(len(ids)), mean)
	}
	logits := m.fc.forward(mean)
	return logits, func(dLogits []float64) {
		dMean := m.fc.backward(mean, dLogits)
		if len(ids) == 0 {
			return
		}
		scale := 1 / float64(len(ids))
		for _, id := range ids {
			floats.AddScaled(m.row(id, m.embedding.Grad), scale, dMean)
		}
	}
}

// Params implements Model.
func (m *EmbedBag) Params() []*Param {
	return append([]*Param{m.embedding}, m.fc.params()...)
}

// Classes implements Model.
func (m *EmbedBag) Classes() int {
	return m.numClasses
}
