package nnue

import (
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/ChizhovVadim/CounterLearn/pkg/common"
)

const (
	// OutputScale converts the network output to centipawns.
	OutputScale = 600
	// MaxEval keeps network scores well below mate scores.
	MaxEval = 15000
)

// Network is a trainable evaluator. Each worker uses its own ThreadEvaluator,
// which shares the weights and keeps private activations and gradients.
// Evaluate and AddExample may run concurrently on different thread evaluators.
// ApplyUpdate must not.
type Network struct {
	FeatureSet FeatureSet
	Hidden     int
	mu         sync.Mutex
	main       *model
	threads    []*ThreadEvaluator
}

func NewNetwork(featureSet FeatureSet, hidden int, rnd *rand.Rand) *Network {
	return &Network{
		FeatureSet: featureSet,
		Hidden:     hidden,
		main:       newModel(featureSet.Size(), hidden, rnd),
	}
}

// ThreadEvaluator returns the evaluator of worker i, creating it on first use.
func (n *Network) ThreadEvaluator(i int) *ThreadEvaluator {
	n.mu.Lock()
	defer n.mu.Unlock()
	for len(n.threads) <= i {
		var m = n.main
		if len(n.threads) != 0 {
			m = n.main.ThreadCopy()
		}
		n.threads = append(n.threads, &ThreadEvaluator{
			featureSet: n.FeatureSet,
			model:      m,
		})
	}
	return n.threads[i]
}

// ApplyUpdate sums the gradients of every thread evaluator and takes one Adam step.
func (n *Network) ApplyUpdate(learningRate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, t := range n.threads {
		t.model.AddGradients(n.main)
		t.examples = 0
	}
	n.main.ApplyGradients(learningRate)
}

// Save writes <dir>/<tag>/nn.bin and returns its path. An empty tag writes into dir.
func (n *Network) Save(dir, tag string) (string, error) {
	var folder = filepath.Join(dir, tag)
	if err := os.MkdirAll(folder, os.ModePerm); err != nil {
		return "", err
	}
	var path = filepath.Join(folder, "nn.bin")
	return path, n.SaveFile(path)
}

type ThreadEvaluator struct {
	featureSet FeatureSet
	model      *model
	input      []FeatureInfo
	examples   int
}

func (e *ThreadEvaluator) forward(p *common.Position) float64 {
	e.input = e.featureSet.AppendFeatures(e.input[:0], p)
	return e.model.forward(e.input)
}

// Evaluate returns centipawns from the side to move point of view.
func (e *ThreadEvaluator) Evaluate(p *common.Position) int {
	var y = e.forward(p)
	return common.Clamp(int(math.Round(y*OutputScale)), -MaxEval, MaxEval)
}

// AddExample accumulates the gradient of one training example.
// grad is the loss derivative with respect to the score seen by the root side,
// p is the leaf where the score was taken.
func (e *ThreadEvaluator) AddExample(p *common.Position, rootWhite bool, grad, weight float64) {
	e.forward(p)
	var delta = grad * weight
	if p.WhiteMove() != rootWhite {
		delta = -delta
	}
	e.model.backward(e.input, delta)
	e.examples++
}

// Examples is the number of examples added since the last update.
func (e *ThreadEvaluator) Examples() int {
	return e.examples
}
