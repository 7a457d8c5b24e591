package learner

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
)

// SoftmaxClassifier is a single-layer linear classifier over flattened inputs.
type SoftmaxClassifier struct {
	Classes  []string
	Features int

	weights []float32 // len(Classes) x Features, row-major
	bias    []float32
	gradW   []float32
	gradB   []float32
}

// NewSoftmaxClassifier returns a zero-initialised classifier.
func NewSoftmaxClassifier(classes []string, features int) *SoftmaxClassifier {
	k := len(classes)
	return &SoftmaxClassifier{
		Classes:  classes,
		Features: features,
		weights:  make([]float32, k*features),
		bias:     make([]float32, k),
		gradW:    make([]float32, k*features),
		gradB:    make([]float32, k),
	}
}

func (m *SoftmaxClassifier) Name() string { return "SoftmaxClassifier" }

func (m *SoftmaxClassifier) Parameters() []Parameter {
	return []Parameter{
		{Name: "linear.weight", Value: m.tensor(m.weights, len(m.Classes), m.Features), Trainable: true},
		{Name: "linear.bias", Value: m.tensor(m.bias, len(m.Classes)), Trainable: true},
	}
}

func (m *SoftmaxClassifier) Gradients() []Parameter {
	return []Parameter{
		{Name: "linear.weight", Value: m.tensor(m.gradW, len(m.Classes), m.Features), Trainable: true},
		{Name: "linear.bias", Value: m.tensor(m.gradB, len(m.Classes)), Trainable: true},
	}
}

func (m *SoftmaxClassifier) tensor(src []float32, shape ...int) Tensor {
	data := make([]float32, len(src))
	copy(data, src)
	return Tensor{Shape: shape, Data: data}
}

// Probs returns the class probabilities for x.
func (m *SoftmaxClassifier) Probs(x Tensor) ([]float32, error) {
	if len(x.Data) != m.Features {
		return nil, fmt.Errorf("expected %d input features, got %d", m.Features, len(x.Data))
	}
	k := len(m.Classes)
	logits := make([]float64, k)
	maxLogit := math.Inf(-1)
	for c := 0; c < k; c++ {
		z := float64(m.bias[c])
		row := m.weights[c*m.Features : (c+1)*m.Features]
		for j, v := range x.Data {
			z += float64(row[j]) * float64(v)
		}
		logits[c] = z
		maxLogit = math.Max(maxLogit, z)
	}

	var sum float64
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		sum += logits[c]
	}
	probs := make([]float32, k)
	for c := range logits {
		probs[c] = float32(logits[c] / sum)
	}
	return probs, nil
}

// Step applies one SGD update for (x, class) and returns the cross-entropy loss.
func (m *SoftmaxClassifier) Step(x Tensor, class int, lr float32) (float64, error) {
	probs, err := m.Probs(x)
	if err != nil {
		return 0, err
	}
	for c, p := range probs {
		g := p
		if c == class {
			g -= 1
		}
		m.gradB[c] = g
		row := c * m.Features
		for j, v := range x.Data {
			m.gradW[row+j] = g * v
			m.weights[row+j] -= lr * g * v
		}
		m.bias[c] -= lr * g
	}
	return -math.Log(math.Max(float64(probs[class]), 1e-12)), nil
}

// weightTensor is the on-disk form of one parameter.
type weightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

type checkpoint struct {
	Model   string         `json:"model"`
	Classes []string       `json:"classes"`
	Weights []weightTensor `json:"weights"`
}

func (m *SoftmaxClassifier) save(w io.Writer) error {
	ckpt := checkpoint{Model: m.Name(), Classes: m.Classes}
	for _, p := range m.Parameters() {
		ckpt.Weights = append(ckpt.Weights, weightTensor{Name: p.Name, Shape: p.Value.Shape, Data: p.Value.Data})
	}
	if err := json.NewEncoder(w).Encode(ckpt); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}
	return nil
}

func (m *SoftmaxClassifier) load(r io.Reader) error {
	var ckpt checkpoint
	if err := json.NewDecoder(r).Decode(&ckpt); err != nil {
		return fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if ckpt.Model != m.Name() {
		return fmt.Errorf("checkpoint is for model %q, not %q", ckpt.Model, m.Name())
	}

	for _, w := range ckpt.Weights {
		var dst []float32
		switch w.Name {
		case "linear.weight":
			dst = m.weights
		case "linear.bias":
			dst = m.bias
		default:
			return fmt.Errorf("unexpected parameter %q in checkpoint", w.Name)
		}
		if len(w.Data) != len(dst) {
			return fmt.Errorf("parameter %s has %d values, expected %d", w.Name, len(w.Data), len(dst))
		}
		copy(dst, w.Data)
	}
	return nil
}
