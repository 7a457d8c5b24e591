package learner

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
)

// ItemList is an in-memory Dataset.
type ItemList []Item

func (l ItemList) Len() int { return len(l) }

func (l ItemList) Item(i int) (Item, error) {
	if i < 0 || i >= len(l) {
		return Item{}, fmt.Errorf("item %d out of range [0, %d)", i, len(l))
	}
	return l[i], nil
}

// History is a Recorder that also keeps the rows reported per epoch.
type History struct {
	names []string
	Rows  [][]float64
}

// NewHistory returns a recorder with the given metric names; the first one
// is the step counter.
func NewHistory(names ...string) *History {
	return &History{names: names}
}

func (h *History) Names() []string { return h.names }

func (h *History) Add(row []float64) { h.Rows = append(h.Rows, row) }

// Reset drops the recorded rows.
func (h *History) Reset() { h.Rows = nil }

// Session trains a SoftmaxClassifier with plain SGD.
type Session struct {
	LR   float32
	Beta float64

	model    *SoftmaxClassifier
	train    ItemList
	valid    ItemList
	history  *History
	rng      *rand.Rand
	movAvg   float64
	steps    int
	classIdx map[string]int
}

// NewSession builds a session whose classes are the labels found in train.
func NewSession(train, valid ItemList, lr float32, seed int64) (*Session, error) {
	if len(train) == 0 {
		return nil, fmt.Errorf("training set is empty")
	}

	classIdx := make(map[string]int)
	var classes []string
	for _, it := range train {
		if _, ok := classIdx[it.Y]; !ok {
			classIdx[it.Y] = len(classes)
			classes = append(classes, it.Y)
		}
	}

	return &Session{
		LR:       lr,
		Beta:     0.98,
		model:    NewSoftmaxClassifier(classes, len(train[0].X.Data)),
		train:    train,
		valid:    valid,
		history:  NewHistory("epoch", "train_loss", "valid_loss", "accuracy"),
		rng:      rand.New(rand.NewSource(seed)),
		classIdx: classIdx,
	}, nil
}

func (s *Session) Model() Model        { return s.model }
func (s *Session) Validation() Dataset { return s.valid }
func (s *Session) Recorder() Recorder  { return s.history }
func (s *Session) History() *History   { return s.history }

func (s *Session) Predict(x Tensor) (Prediction, error) {
	probs, err := s.model.Probs(x)
	if err != nil {
		return Prediction{}, err
	}
	best := 0
	for c, p := range probs {
		if p > probs[best] {
			best = c
		}
	}
	return Prediction{
		Label:  s.model.Classes[best],
		Target: Tensor{Data: []float32{float32(best)}},
		Probs:  probs,
	}, nil
}

func (s *Session) Save(w io.Writer) error {
	return s.model.save(w)
}

func (s *Session) Load(r io.Reader, purge bool) error {
	if err := s.model.load(r); err != nil {
		return err
	}
	if purge {
		s.history.Reset()
	}
	return nil
}

// TrainEpoch visits the training set in a shuffled order and returns the
// debiased exponential moving average of the loss.
func (s *Session) TrainEpoch(ctx context.Context) (float64, error) {
	for _, i := range s.rng.Perm(len(s.train)) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		it := s.train[i]
		loss, err := s.model.Step(it.X, s.classIdx[it.Y], s.LR)
		if err != nil {
			return 0, fmt.Errorf("failed to train on item %d: %w", i, err)
		}
		s.steps++
		s.movAvg = s.Beta*s.movAvg + (1-s.Beta)*loss
	}
	return s.movAvg / (1 - math.Pow(s.Beta, float64(s.steps))), nil
}

// Validate returns [valid_loss, accuracy]. An empty validation set yields NaN
// for both.
func (s *Session) Validate(ctx context.Context) ([]float64, error) {
	if len(s.valid) == 0 {
		return []float64{math.NaN(), math.NaN()}, nil
	}

	var loss float64
	var correct int
	for _, it := range s.valid {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probs, err := s.model.Probs(it.X)
		if err != nil {
			return nil, err
		}
		class, known := s.classIdx[it.Y]
		if known {
			loss -= math.Log(math.Max(float64(probs[class]), 1e-12))
		}
		pred, err := s.Predict(it.X)
		if err != nil {
			return nil, err
		}
		if pred.Label == it.Y {
			correct++
		}
	}

	n := float64(len(s.valid))
	metrics := []float64{loss / n, float64(correct) / n}
	s.history.Add(append([]float64{float64(len(s.history.Rows))}, metrics...))
	return metrics, nil
}
