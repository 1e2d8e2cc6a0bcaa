package stylegan

import "sort"
import "strconv"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/layer"
import "github.com/neurlang/stylegan/tensor"

func dotted(prefix string, i int) string {
	return prefix + "." + strconv.Itoa(i)
}

// StateDict is a serializable snapshot of a network's parameters by name.
type StateDict map[string]StateEntry

// StateEntry is one parameter's shape and flattened values.
type StateEntry struct {
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ExportState snapshots named parameters into a StateDict.
func ExportState(params []layer.Named) StateDict {
	sd := make(StateDict, len(params))
	for _, np := range params {
		v := np.Param.Value
		sd[np.Name] = StateEntry{
			Shape: append([]int{}, v.Shape...),
			Data:  append([]float64{}, v.Data...),
		}
	}
	return sd
}

// ImportState writes a StateDict back into named parameters. Every
// parameter must be present with a matching shape; anything else means the
// checkpoint and the grown topology disagree.
func ImportState(params []layer.Named, sd StateDict) error {
	for _, np := range params {
		entry, ok := sd[np.Name]
		if !ok {
			return errors.Errorf("stylegan: state dict is missing parameter %q", np.Name)
		}
		want := &tensor.Tensor{Shape: entry.Shape, Data: entry.Data}
		if !tensor.SameShape(np.Param.Value, want) {
			return errors.Errorf("stylegan: state dict shape mismatch for %q: %v != %v",
				np.Name, entry.Shape, np.Param.Value.Shape)
		}
		copy(np.Param.Value.Data, entry.Data)
	}
	return nil
}

// Names returns the sorted parameter names of a StateDict.
func (sd StateDict) Names() []string {
	out := make([]string, 0, len(sd))
	for name := range sd {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
