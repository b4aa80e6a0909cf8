package linear

import "math"

type Options struct {
	Epochs       int
	LearningRate float64
	// L2 penalty applied to coefficients (not the bias).
	L2 float64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	Loss     float64
	Accuracy float64
}

func (o Options) withDefaults() Options {
	if o.Epochs <= 0 {
		o.Epochs = 200
	}
	if o.LearningRate <= 0 {
		o.LearningRate = 0.01
	}
	if o.L2 < 0 {
		o.L2 = 0
	}
	return o
}

// TrainLogistic fits a binary model by full-batch gradient descent. labels
// are 0 or 1.
func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics) {
	opts = opts.withDefaults()

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}
	}
	featureCount := len(samples[0])
	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for i, sample := range samples {
			prediction := sigmoid(dot(weights, sample) + bias)
			residual := prediction - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += residual * sample[j]
			}
			biasGrad += residual
		}
		for j := 0; j < featureCount; j++ {
			weights[j] -= opts.LearningRate * (grad[j]/float64(n) + opts.L2*weights[j])
		}
		bias -= opts.LearningRate * biasGrad / float64(n)
	}

	loss, accuracy := evaluate(weights, bias, samples, labels)
	return Weights{Bias: bias, Coefficients: weights}, Metrics{Loss: loss, Accuracy: accuracy}
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights) && i < len(sample); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func evaluate(weights []float64, bias float64, samples [][]float64, labels []float64) (float64, float64) {
	var loss float64
	var correct int
	for i, sample := range samples {
		prediction := sigmoid(dot(weights, sample) + bias)
		loss += -labels[i]*math.Log(prediction+1e-9) - (1-labels[i])*math.Log(1-prediction+1e-9)
		if (prediction >= 0.5 && labels[i] == 1) || (prediction < 0.5 && labels[i] == 0) {
			correct++
		}
	}
	loss /= float64(len(samples))
	accuracy := float64(correct) / float64(len(samples))
	return loss, accuracy
}
