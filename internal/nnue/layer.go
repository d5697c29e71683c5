package nnue

import (
	"math/rand"

	"github.com/ChizhovVadim/CounterLearn/internal/ml"
)

type Neuron struct {
	Activation float64
	Error      float64
	Prime      float64
}

// Layer takes either dense inputs (the previous layer) or sparse features.
// Weights are shared by thread copies, gradients are not.
type Layer struct {
	activationFn ml.IActivationFn
	outputs      []Neuron
	weights      ml.Matrix
	biases       ml.Matrix
	wGradients   ml.Gradients
	bGradients   ml.Gradients
}

func NewLayer(inputSize, outputSize int, activationFn ml.IActivationFn) *Layer {
	return &Layer{
		outputs:      make([]Neuron, outputSize),
		activationFn: activationFn,
		weights:      ml.NewMatrix(outputSize, inputSize),
		biases:       ml.NewMatrix(outputSize, 1),
		wGradients:   ml.NewGradients(outputSize, inputSize),
		bGradients:   ml.NewGradients(outputSize, 1),
	}
}

func (l *Layer) ThreadCopy() *Layer {
	return &Layer{
		activationFn: l.activationFn,
		outputs:      make([]Neuron, len(l.outputs)),
		weights:      l.weights,
		biases:       l.biases,
		wGradients:   ml.NewGradients(l.wGradients.Rows, l.wGradients.Cols),
		bGradients:   ml.NewGradients(l.bGradients.Rows, l.bGradients.Cols),
	}
}

func (l *Layer) InputSize() int {
	return l.weights.Cols
}

func (l *Layer) OutputSize() int {
	return l.weights.Rows
}

func (layer *Layer) InitWeightsReLU(rnd *rand.Rand) *Layer {
	var inputSize = layer.weights.Cols
	var variance = 2.0 / float64(inputSize)
	ml.InitUniform(rnd, layer.weights.Data, variance)
	return layer
}

// InitWeightsCount is for sparse inputs, count is the typical number of active features.
func (layer *Layer) InitWeightsCount(rnd *rand.Rand, count float64) *Layer {
	ml.InitUniform(rnd, layer.weights.Data, 1.0/count)
	return layer
}

func (layer *Layer) InitWeightsXavier(rnd *rand.Rand) *Layer {
	var variance = 2.0 / float64(layer.weights.Rows+layer.weights.Cols)
	ml.InitUniform(rnd, layer.weights.Data, variance)
	return layer
}

func (layer *Layer) ForwardSparse(input []FeatureInfo) {
	for outputIndex := range layer.outputs {
		layer.outputs[outputIndex].Activation = layer.biases.Data[outputIndex]
	}
	for _, f := range input {
		var column = layer.weights.Column(int(f.Index))
		var value = float64(f.Value)
		for outputIndex := range layer.outputs {
			layer.outputs[outputIndex].Activation += column[outputIndex] * value
		}
	}
	for outputIndex := range layer.outputs {
		var n = &layer.outputs[outputIndex]
		var x = n.Activation
		n.Activation = layer.activationFn.Sigma(x)
		n.Prime = layer.activationFn.SigmaPrime(x)
	}
}

func (layer *Layer) Forward(input []Neuron) {
	for outputIndex := range layer.outputs {
		var x = layer.biases.Data[outputIndex]
		for inputIndex := range input {
			x += layer.weights.Get(outputIndex, inputIndex) * input[inputIndex].Activation
		}
		var n = &layer.outputs[outputIndex]
		n.Activation = layer.activationFn.Sigma(x)
		n.Prime = layer.activationFn.SigmaPrime(x)
	}
}

// Backward propagates output errors into input errors and accumulates gradients.
func (layer *Layer) Backward(input []Neuron) {
	for inputIndex := range input {
		input[inputIndex].Error = 0
	}
	for outputIndex := range layer.outputs {
		var n = &layer.outputs[outputIndex]
		var x = n.Error * n.Prime
		if x == 0 {
			continue
		}
		layer.bGradients.Add(outputIndex, 0, x)
		for inputIndex := range input {
			input[inputIndex].Error += layer.weights.Get(outputIndex, inputIndex) * x
			layer.wGradients.Add(outputIndex, inputIndex, x*input[inputIndex].Activation)
		}
	}
}

func (layer *Layer) BackwardSparse(input []FeatureInfo) {
	for outputIndex := range layer.outputs {
		var n = &layer.outputs[outputIndex]
		var x = n.Error * n.Prime
		if x == 0 {
			continue
		}
		layer.bGradients.Add(outputIndex, 0, x)
		for _, f := range input {
			layer.wGradients.Add(outputIndex, int(f.Index), x*float64(f.Value))
		}
	}
}

func (layer *Layer) AddGradients(main *Layer) {
	layer.wGradients.AddTo(&main.wGradients)
	layer.bGradients.AddTo(&main.bGradients)
}

func (layer *Layer) ApplyGradients(learningRate float64) {
	layer.wGradients.Apply(&layer.weights, learningRate)
	layer.bGradients.Apply(&layer.biases, learningRate)
}
