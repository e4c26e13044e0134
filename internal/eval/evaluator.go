package eval

import (
	"fmt"
	"log"
	"math"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"dpfair/internal/dataset"
	"dpfair/internal/metrics"
	"dpfair/internal/model"
)

// Result is the outcome of one evaluation pass.
type Result struct {
	Name      string
	Correct   int
	Total     int
	Accuracy  float64
	Confusion *mat.Dense
	PerClass  []float64
	Summary   Summary
}

// Evaluate runs the model over every batch and builds the confusion matrix.
// With workers > 1 the forward passes of a batch run concurrently.
func Evaluate(m model.Model, batches []model.Batch, workers int) Result {
	var truth, predicted []int
	for _, b := range batches {
		logits, _ := model.ForwardBatch(m, b.Inputs, workers)
		for i, l := range logits {
			predicted = append(predicted, model.Argmax(l))
			truth = append(truth, b.Labels[i])
		}
	}
	res := Result{Total: len(truth)}
	for i := range truth {
		if truth[i] == predicted[i] {
			res.Correct++
		}
	}
	res.Accuracy = math.NaN()
	if res.Total > 0 {
		res.Accuracy = 100 * float64(res.Correct) / float64(res.Total)
	}
	res.Confusion = Confusion(truth, predicted, m.Classes())
	res.PerClass = PerClassAccuracy(res.Confusion)
	res.Summary = Summarize(res.PerClass)
	return res
}

// Evaluator runs evaluations and reports them to a sink, a logger and
// per-epoch artifact files in Folder.
type Evaluator struct {
	Sink    metrics.Sink
	Logger  *log.Logger
	Labels  []string
	Folder  string
	Workers int
}

// Test evaluates m on loader. With vis set it also emits per-class series,
// the confusion matrices and the per-epoch artifacts.
func (e *Evaluator) Test(m model.Model, epoch int, name string, loader *dataset.Loader, vis bool) (Result, error) {
	res := Evaluate(m, loader.Batches(), e.Workers)
	res.Name = name
	e.Logger.Printf("name=%s epoch=%d acc=%.4f correct=%d total=%d", name, epoch, res.Accuracy, res.Correct, res.Total)
	if !vis {
		return res, nil
	}

	if err := e.Sink.Scalar(epoch, name, res.Accuracy); err != nil {
		return res, err
	}
	if err := e.Sink.Matrix(epoch, "tag/normalized_cm", Normalize(res.Confusion)); err != nil {
		return res, err
	}
	perClass := make(map[string]*float64, len(res.PerClass))
	for i, acc := range res.PerClass {
		label := e.label(i)
		e.Logger.Printf("class=%d accuracy=%.4f", i, acc)
		if math.IsNaN(acc) {
			perClass[strconv.Itoa(i)] = nil
			continue
		}
		v := acc
		perClass[strconv.Itoa(i)] = &v
		if err := e.Sink.Scalar(epoch, "accuracy_per_class/class_"+label, acc); err != nil {
			return res, err
		}
	}
	if res.Summary.Undefined > 0 {
		e.Logger.Printf("epoch=%d classes_without_support=%d excluded from per-class statistics", epoch, res.Summary.Undefined)
	}
	if err := e.Sink.Matrix(epoch, "tag/per_class", mat.NewDense(1, len(res.PerClass), res.PerClass)); err != nil {
		return res, err
	}
	if err := metrics.SaveJSON(filepath.Join(e.Folder, fmt.Sprintf("test_acc_class_%d.json", epoch)), perClass); err != nil {
		return res, err
	}
	for _, s := range []struct {
		tag   string
		value float64
	}{
		{"accuracy_per_class/accuracy_var", res.Summary.Var},
		{"accuracy_per_class/accuracy_max", res.Summary.Max},
		{"accuracy_per_class/accuracy_min", res.Summary.Min},
	} {
		if err := e.Sink.Scalar(epoch, s.tag, s.value); err != nil {
			return res, err
		}
	}
	if err := metrics.SaveJSON(filepath.Join(e.Folder, fmt.Sprintf("cm_%d.json", epoch)), rows(res.Confusion)); err != nil {
		return res, err
	}
	return res, e.Sink.Matrix(epoch, "tag/unnormalized_cm", res.Confusion)
}

func (e *Evaluator) label(i int) string {
	if i < len(e.Labels) {
		return e.Labels[i]
	}
	return strconv.Itoa(i)
}

// Subgroups evaluates each held-out subgroup loader in name order and
// reports the spread of their accuracies.
func (e *Evaluator) Subgroups(m model.Model, epoch int, loaders map[string]*dataset.Loader) (map[string]float64, Summary, error) {
	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)

	accs := make(map[string]float64, len(names))
	values := make([]float64, 0, len(names))
	artifact := make(map[string]*float64, len(names))
	for _, name := range names {
		res, err := e.Test(m, epoch, name, loaders[name], false)
		if err != nil {
			return nil, Summary{}, err
		}
		accs[name] = res.Accuracy
		values = append(values, res.Accuracy)
		if math.IsNaN(res.Accuracy) {
			artifact[name] = nil
			continue
		}
		v := res.Accuracy
		artifact[name] = &v
		if err := e.Sink.Scalar(epoch, "dif_unbalanced/"+name, res.Accuracy); err != nil {
			return nil, Summary{}, err
		}
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	e.Logger.Printf("epoch=%d subgroup_accuracy=%v", epoch, sorted)

	summary := Summarize(values)
	for _, s := range []struct {
		tag   string
		value float64
	}{
		{"accuracy_detailed/mean", summary.Mean},
		{"accuracy_detailed/min", summary.Min},
		{"accuracy_detailed/max", summary.Max},
		{"accuracy_detailed/var", summary.Var},
	} {
		if err := e.Sink.Scalar(epoch, s.tag, s.value); err != nil {
			return nil, Summary{}, err
		}
	}
	if err := metrics.SaveJSON(filepath.Join(e.Folder, fmt.Sprintf("acc_subgroup_%d.json", epoch)), artifact); err != nil {
		return nil, Summary{}, err
	}
	if len(values) > 0 {
		if err := e.Sink.Matrix(epoch, "tag/subgroup", mat.NewDense(1, len(values), values)); err != nil {
			return nil, Summary{}, err
		}
	}
	return accs, summary, nil
}

func rows(m *mat.Dense) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
