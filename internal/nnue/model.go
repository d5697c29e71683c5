package nnue

import (
	"math/rand"

	"github.com/ChizhovVadim/CounterLearn/internal/ml"
)

const (
	DefaultHidden = 256
	hidden2Size   = 32
)

// features -> hidden (clipped relu) -> 32 (clipped relu) -> 1
type model struct {
	layer1 *Layer
	layer2 *Layer
	layer3 *Layer
}

// newModel leaves the weights zero when rnd is nil.
func newModel(featureSize, hiddenSize int, rnd *rand.Rand) *model {
	if rnd == nil {
		return &model{
			layer1: NewLayer(featureSize, hiddenSize, &ml.ClippedReLuActivation{}),
			layer2: NewLayer(hiddenSize, hidden2Size, &ml.ClippedReLuActivation{}),
			layer3: NewLayer(hidden2Size, 1, &ml.IdentityActivation{}),
		}
	}
	return &model{
		layer1: NewLayer(featureSize, hiddenSize, &ml.ClippedReLuActivation{}).
			InitWeightsCount(rnd, 32), // at most 32 pieces on the board
		layer2: NewLayer(hiddenSize, hidden2Size, &ml.ClippedReLuActivation{}).
			InitWeightsReLU(rnd),
		layer3: NewLayer(hidden2Size, 1, &ml.IdentityActivation{}).
			InitWeightsXavier(rnd),
	}
}

func (m *model) ThreadCopy() *model {
	return &model{
		layer1: m.layer1.ThreadCopy(),
		layer2: m.layer2.ThreadCopy(),
		layer3: m.layer3.ThreadCopy(),
	}
}

func (m *model) forward(input []FeatureInfo) float64 {
	m.layer1.ForwardSparse(input)
	m.layer2.Forward(m.layer1.outputs)
	m.layer3.Forward(m.layer2.outputs)
	return m.layer3.outputs[0].Activation
}

// backward must follow forward on the same input.
func (m *model) backward(input []FeatureInfo, outputError float64) {
	m.layer3.outputs[0].Error = outputError
	m.layer3.Backward(m.layer2.outputs)
	m.layer2.Backward(m.layer1.outputs)
	m.layer1.BackwardSparse(input)
}

func (m *model) AddGradients(main *model) {
	if m == main {
		return
	}
	m.layer1.AddGradients(main.layer1)
	m.layer2.AddGradients(main.layer2)
	m.layer3.AddGradients(main.layer3)
}

func (m *model) ApplyGradients(learningRate float64) {
	m.layer1.ApplyGradients(learningRate)
	m.layer2.ApplyGradients(learningRate)
	m.layer3.ApplyGradients(learningRate)
}

func (m *model) layers() []*Layer {
	return []*Layer{m.layer1, m.layer2, m.layer3}
}
