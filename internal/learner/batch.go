package learner

import "fmt"

// Batch is either a single batched tensor or a tuple of them.
type Batch []Tensor

// IsListy reports whether b holds more than one tensor.
func IsListy(b Batch) bool {
	return len(b) > 1
}

// GrabIdx returns the i-th sample of every tensor in b. With batchFirst the
// batch dimension is the first one, otherwise the second.
func GrabIdx(b Batch, i int, batchFirst bool) (Batch, error) {
	out := make(Batch, 0, len(b))
	for _, t := range b {
		s, err := sliceAt(t, i, batchFirst)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func sliceAt(t Tensor, i int, batchFirst bool) (Tensor, error) {
	axis := 0
	if !batchFirst {
		axis = 1
	}
	if len(t.Shape) <= axis {
		return Tensor{}, fmt.Errorf("tensor of rank %d has no axis %d", len(t.Shape), axis)
	}
	if i < 0 || i >= t.Shape[axis] {
		return Tensor{}, fmt.Errorf("index %d out of range for axis %d of size %d", i, axis, t.Shape[axis])
	}

	outer := 1
	for _, d := range t.Shape[:axis] {
		outer *= d
	}
	inner := 1
	for _, d := range t.Shape[axis+1:] {
		inner *= d
	}

	shape := make([]int, 0, len(t.Shape)-1)
	shape = append(shape, t.Shape[:axis]...)
	shape = append(shape, t.Shape[axis+1:]...)

	data := make([]float32, 0, outer*inner)
	stride := t.Shape[axis] * inner
	for o := 0; o < outer; o++ {
		start := o*stride + i*inner
		data = append(data, t.Data[start:start+inner]...)
	}
	return Tensor{Shape: shape, Data: data}, nil
}

// HasArg reports whether name is among the accepted option names.
func HasArg(accepted []string, name string) bool {
	for _, a := range accepted {
		if a == name {
			return true
		}
	}
	return false
}

// SplitKwargs moves the options named in accepted out of kwargs. It returns
// the moved options and the remaining ones; kwargs itself is modified.
func SplitKwargs(kwargs map[string]any, accepted []string) (map[string]any, map[string]any) {
	picked := make(map[string]any)
	for _, a := range accepted {
		if v, ok := kwargs[a]; ok {
			picked[a] = v
			delete(kwargs, a)
		}
	}
	return picked, kwargs
}
