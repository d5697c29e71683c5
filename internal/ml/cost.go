package ml

type IModelCost interface {
	Cost(predicted, target float64) float64
	CostPrime(predicted, target float64) float64
}

type MSECost struct{}

func (*MSECost) Cost(predicted, target float64) float64 {
	var x = predicted - target
	return x * x
}

func (*MSECost) CostPrime(predicted, target float64) float64 {
	return 2 * (predicted - target)
}

// SigmoidMSECost compares sigmoid(predicted) with a probability target.
type SigmoidMSECost struct{}

func (*SigmoidMSECost) Cost(predicted, target float64) float64 {
	var x = Sigmoid(predicted) - target
	return x * x
}

func (*SigmoidMSECost) CostPrime(predicted, target float64) float64 {
	var sigmoid = Sigmoid(predicted)
	var sigmoidPrime = sigmoid * (1 - sigmoid)
	return 2 * (sigmoid - target) * sigmoidPrime
}
