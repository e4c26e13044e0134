package model

import "sync"

// ForwardBatch evaluates every input, spreading the work over at most
// workers goroutines. Forward only reads parameters, so replicas share them.
// Results keep the input order.
func ForwardBatch(m Model, inputs [][]float64, workers int) ([][]float64, []Backward) {
	logits := make([][]float64, len(inputs))
	backs := make([]Backward, len(inputs))
	if workers <= 1 || len(inputs) < 2 {
		for i, in := range inputs {
			logits[i], backs[i] = m.Forward(in)
		}
		return logits, backs
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for i := range inputs {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			logits[i], backs[i] = m.Forward(inputs[i])
		}(i)
	}
	wg.Wait()
	return logits, backs
}
