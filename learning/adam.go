package learning

import "math"

import "github.com/pkg/errors"

import "github.com/neurlang/stylegan/layer"

// Group is a set of named parameters sharing one learning rate. The
// generator uses two groups so its style mapper can run at a reduced rate.
type Group struct {
	LR     float64
	Params []layer.Named
}

type adamSlot struct {
	named layer.Named
	m     []float64
	v     []float64
}

type adamGroup struct {
	lr    float64
	slots []adamSlot
}

// Adam is the Adam optimizer over one or more parameter groups.
type Adam struct {
	Betas [2]float64
	Eps   float64
	T     int

	groups []adamGroup
}

// NewAdam binds an optimizer to the given parameter groups.
func NewAdam(betas [2]float64, eps float64, groups ...Group) *Adam {
	a := &Adam{Betas: betas, Eps: eps}
	for _, g := range groups {
		ag := adamGroup{lr: g.LR}
		for _, np := range g.Params {
			n := np.Param.Value.Len()
			ag.slots = append(ag.slots, adamSlot{named: np, m: make([]float64, n), v: make([]float64, n)})
		}
		a.groups = append(a.groups, ag)
	}
	return a
}

// ZeroGrad clears the gradient accumulators of all bound parameters.
func (a *Adam) ZeroGrad() {
	for _, g := range a.groups {
		for _, s := range g.slots {
			s.named.Param.ZeroGrad()
		}
	}
}

// GradsFinite reports whether every bound gradient is finite.
func (a *Adam) GradsFinite() bool {
	for _, g := range a.groups {
		for _, s := range g.slots {
			for _, v := range s.named.Param.Grad.Data {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					return false
				}
			}
		}
	}
	return true
}

// Step applies one Adam update. Each gradient is multiplied by gradScale
// first, which is how the loss scaler unscales before the update.
func (a *Adam) Step(gradScale float64) {
	a.T++
	bc1 := 1 - math.Pow(a.Betas[0], float64(a.T))
	bc2 := 1 - math.Pow(a.Betas[1], float64(a.T))
	for _, g := range a.groups {
		for _, s := range g.slots {
			if !s.named.Param.Trainable {
				continue
			}
			p := s.named.Param.Value.Data
			grad := s.named.Param.Grad.Data
			for i := range p {
				gv := grad[i] * gradScale
				s.m[i] = a.Betas[0]*s.m[i] + (1-a.Betas[0])*gv
				s.v[i] = a.Betas[1]*s.v[i] + (1-a.Betas[1])*gv*gv
				mHat := s.m[i] / bc1
				vHat := s.v[i] / bc2
				p[i] -= g.lr * mHat / (math.Sqrt(vHat) + a.Eps)
			}
		}
	}
}

// LRs returns the learning rate of every group in order.
func (a *Adam) LRs() []float64 {
	out := make([]float64, len(a.groups))
	for i, g := range a.groups {
		out[i] = g.lr
	}
	return out
}

// State is a serializable snapshot of the optimizer.
type State struct {
	T      int          `json:"t"`
	Betas  [2]float64   `json:"betas"`
	Eps    float64      `json:"eps"`
	Groups []GroupState `json:"groups"`
}

// GroupState snapshots one parameter group.
type GroupState struct {
	LR     float64      `json:"lr"`
	Params []ParamState `json:"params"`
}

// ParamState snapshots the moment estimates of one parameter.
type ParamState struct {
	Name string    `json:"name"`
	M    []float64 `json:"m"`
	V    []float64 `json:"v"`
}

// Export snapshots the optimizer state.
func (a *Adam) Export() State {
	st := State{T: a.T, Betas: a.Betas, Eps: a.Eps}
	for _, g := range a.groups {
		gs := GroupState{LR: g.lr}
		for _, s := range g.slots {
			gs.Params = append(gs.Params, ParamState{
				Name: s.named.Name,
				M:    append([]float64{}, s.m...),
				V:    append([]float64{}, s.v...),
			})
		}
		st.Groups = append(st.Groups, gs)
	}
	return st
}

// Import restores a snapshot into an optimizer freshly rebuilt over the
// same parameter set. Group layout and parameter names must line up.
func (a *Adam) Import(st State) error {
	if len(st.Groups) != len(a.groups) {
		return errors.Errorf("learning: optimizer state has %d groups, want %d", len(st.Groups), len(a.groups))
	}
	for gi := range a.groups {
		g := &a.groups[gi]
		gs := st.Groups[gi]
		if len(gs.Params) != len(g.slots) {
			return errors.Errorf("learning: group %d has %d params, want %d", gi, len(gs.Params), len(g.slots))
		}
		for si := range g.slots {
			s := &g.slots[si]
			ps := gs.Params[si]
			if ps.Name != s.named.Name {
				return errors.Errorf("learning: optimizer state param %q, want %q", ps.Name, s.named.Name)
			}
			if len(ps.M) != len(s.m) || len(ps.V) != len(s.v) {
				return errors.Errorf("learning: moment size mismatch for %q", ps.Name)
			}
			copy(s.m, ps.M)
			copy(s.v, ps.V)
		}
		g.lr = gs.LR
	}
	a.T = st.T
	a.Betas = st.Betas
	a.Eps = st.Eps
	return nil
}
