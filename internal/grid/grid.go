// Package grid holds the batch of co-indexed parameter tuples priced in one
// run and exposes, per index, which path-relevant parameters changed since
// the previous index.
package grid

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	apperrors "github.com/agbru/rbergomi/internal/errors"
)

var (
	// ErrEmpty is returned when one of the six parameter arrays has no element.
	ErrEmpty = errors.New("empty parameter array")
	// ErrSizeMismatch is returned when the parameter arrays differ in length.
	ErrSizeMismatch = errors.New("parameter arrays have mismatched lengths")
)

// SizeError reports which array broke the length contract.
type SizeError struct {
	// Param is the parameter name ("H", "eta", ...).
	Param string
	// Len is the length of that array.
	Len int
	// Want is the length of the H array, used as the reference.
	Want int
	// Err is ErrEmpty or ErrSizeMismatch.
	Err error
}

func (e *SizeError) Error() string {
	if errors.Is(e.Err, ErrEmpty) {
		return fmt.Sprintf("%v: %s", e.Err, e.Param)
	}
	return fmt.Sprintf("%v: %s has %d values, H has %d", e.Err, e.Param, e.Len, e.Want)
}

func (e *SizeError) Unwrap() error { return e.Err }

// ExitCode implements apperrors.ExitCoder.
func (e *SizeError) ExitCode() int {
	if errors.Is(e.Err, ErrEmpty) {
		return apperrors.ExitErrorEmptyInput
	}
	return apperrors.ExitErrorSizeMismatch
}

// Params is one row of the grid.
type Params struct {
	H   float64 `json:"H"`
	Eta float64 `json:"eta"`
	Rho float64 `json:"rho"`
	T   float64 `json:"T"`
	K   float64 `json:"K"`
	Xi  float64 `json:"xi"`
}

// Stage is the highest-precedence path parameter that changed at an index.
// The dependency chain is H -> T -> eta -> rho, so a Stage implies every
// stage below it: a run whose Stage is StageT must also redo the eta and
// rho work.
type Stage uint8

const (
	// StageNone means nothing path-relevant changed; only xi or K differ.
	StageNone Stage = iota
	// StageRho means rho changed.
	StageRho
	// StageEta means eta changed.
	StageEta
	// StageT means the maturity changed.
	StageT
	// StageH means the Hurst exponent changed, or this is the first index.
	StageH
)

// String returns the parameter name of the stage.
func (s Stage) String() string {
	switch s {
	case StageNone:
		return "none"
	case StageRho:
		return "rho"
	case StageEta:
		return "eta"
	case StageT:
		return "T"
	case StageH:
		return "H"
	default:
		return fmt.Sprintf("Stage(%d)", uint8(s))
	}
}

// Grid is an immutable sequence of parameter tuples. It is safe for
// concurrent readers once constructed.
type Grid struct {
	rows   []Params
	stages []Stage
	// perm[i] is the input position of row i; nil when rows keep input order.
	perm []int
}

// New builds a grid that keeps the input order.
//
// Parameters:
//   - h, eta, rho, t, k, xi: Co-indexed parameter arrays.
//
// Returns:
//   - *Grid: The grid.
//   - error: A *SizeError wrapping ErrEmpty or ErrSizeMismatch.
func New(h, eta, rho, t, k, xi []float64) (*Grid, error) {
	rows, err := zip(h, eta, rho, t, k, xi)
	if err != nil {
		return nil, err
	}
	return build(rows, nil), nil
}

// NewOrdered builds a grid whose rows are stable-sorted by H, then T, then
// eta, then rho. Long runs of equal leading parameters let the evaluator
// skip the expensive recomputation steps. Restore maps outputs back to the
// input order.
func NewOrdered(h, eta, rho, t, k, xi []float64) (*Grid, error) {
	rows, err := zip(h, eta, rho, t, k, xi)
	if err != nil {
		return nil, err
	}
	perm := make([]int, len(rows))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		ra, rb := rows[a], rows[b]
		return cmp.Or(
			cmp.Compare(ra.H, rb.H),
			cmp.Compare(ra.T, rb.T),
			cmp.Compare(ra.Eta, rb.Eta),
			cmp.Compare(ra.Rho, rb.Rho),
		)
	})
	sorted := make([]Params, len(rows))
	for i, p := range perm {
		sorted[i] = rows[p]
	}
	return build(sorted, perm), nil
}

// FromParams builds an unordered grid from ready-made rows.
func FromParams(rows []Params) (*Grid, error) {
	if len(rows) == 0 {
		return nil, &SizeError{Param: "H", Err: ErrEmpty}
	}
	return build(slices.Clone(rows), nil), nil
}

func zip(h, eta, rho, t, k, xi []float64) ([]Params, error) {
	arrays := []struct {
		name string
		v    []float64
	}{{"H", h}, {"eta", eta}, {"rho", rho}, {"T", t}, {"K", k}, {"xi", xi}}

	for _, a := range arrays {
		if len(a.v) == 0 {
			return nil, &SizeError{Param: a.name, Want: len(h), Err: ErrEmpty}
		}
	}
	for _, a := range arrays[1:] {
		if len(a.v) != len(h) {
			return nil, &SizeError{Param: a.name, Len: len(a.v), Want: len(h), Err: ErrSizeMismatch}
		}
	}

	rows := make([]Params, len(h))
	for i := range rows {
		rows[i] = Params{H: h[i], Eta: eta[i], Rho: rho[i], T: t[i], K: k[i], Xi: xi[i]}
	}
	return rows, nil
}

func build(rows []Params, perm []int) *Grid {
	g := &Grid{rows: rows, perm: perm, stages: make([]Stage, len(rows))}
	for i := range rows {
		g.stages[i] = stageAt(rows, i)
	}
	return g
}

// stageAt is the one place the H -> T -> eta -> rho precedence is decided.
// Comparisons are exact: equal values were copied from the same input, not
// recomputed.
func stageAt(rows []Params, i int) Stage {
	if i == 0 {
		return StageH
	}
	cur, prev := rows[i], rows[i-1]
	switch {
	case cur.H != prev.H:
		return StageH
	case cur.T != prev.T:
		return StageT
	case cur.Eta != prev.Eta:
		return StageEta
	case cur.Rho != prev.Rho:
		return StageRho
	default:
		return StageNone
	}
}

// Len returns the number of rows.
func (g *Grid) Len() int { return len(g.rows) }

// At returns row i in grid order.
func (g *Grid) At(i int) Params { return g.rows[i] }

// H returns the Hurst exponent of row i.
func (g *Grid) H(i int) float64 { return g.rows[i].H }

// Eta returns the vol-of-vol of row i.
func (g *Grid) Eta(i int) float64 { return g.rows[i].Eta }

// Rho returns the spot-vol correlation of row i.
func (g *Grid) Rho(i int) float64 { return g.rows[i].Rho }

// T returns the maturity of row i.
func (g *Grid) T(i int) float64 { return g.rows[i].T }

// K returns the strike of row i.
func (g *Grid) K(i int) float64 { return g.rows[i].K }

// Xi returns the flat forward variance of row i.
func (g *Grid) Xi(i int) float64 { return g.rows[i].Xi }

// Stage returns the dirty level of row i relative to row i-1.
func (g *Grid) Stage(i int) Stage { return g.stages[i] }

// HChanged reports whether H differs from the previous row.
func (g *Grid) HChanged(i int) bool { return i == 0 || g.rows[i].H != g.rows[i-1].H }

// TChanged reports whether T differs from the previous row.
func (g *Grid) TChanged(i int) bool { return i == 0 || g.rows[i].T != g.rows[i-1].T }

// EtaChanged reports whether eta differs from the previous row.
func (g *Grid) EtaChanged(i int) bool { return i == 0 || g.rows[i].Eta != g.rows[i-1].Eta }

// RhoChanged reports whether rho differs from the previous row.
func (g *Grid) RhoChanged(i int) bool { return i == 0 || g.rows[i].Rho != g.rows[i-1].Rho }

// Ordered reports whether rows were sorted at construction.
func (g *Grid) Ordered() bool { return g.perm != nil }

// Original returns the input position of row i.
func (g *Grid) Original(i int) int {
	if g.perm == nil {
		return i
	}
	return g.perm[i]
}

// Restore writes src, indexed in grid order, into dst in input order.
// dst and src must both have Len elements and must not overlap.
func Restore[T any](g *Grid, dst, src []T) {
	for i := range src {
		dst[g.Original(i)] = src[i]
	}
}

// DistinctH returns the distinct H values in ascending order.
func (g *Grid) DistinctH() []float64 {
	hs := make([]float64, len(g.rows))
	for i, r := range g.rows {
		hs[i] = r.H
	}
	slices.Sort(hs)
	return slices.Compact(hs)
}

// Validate checks every row against the model's parameter domain.
//
// Returns:
//   - error: An apperrors.ValidationError naming the first offending field.
func (g *Grid) Validate() error {
	for i, r := range g.rows {
		row := g.Original(i) + 1
		checks := []struct {
			field string
			value float64
			ok    bool
			msg   string
		}{
			{"H", r.H, r.H > 0 && r.H < 1, "must lie in (0, 1)"},
			{"eta", r.Eta, r.Eta >= 0, "must be non-negative"},
			{"rho", r.Rho, r.Rho >= -1 && r.Rho <= 1, "must lie in [-1, 1]"},
			{"T", r.T, r.T > 0, "must be strictly positive"},
			{"K", r.K, r.K > 0, "must be strictly positive"},
			{"xi", r.Xi, r.Xi > 0, "must be strictly positive"},
		}
		for _, c := range checks {
			if math.IsNaN(c.value) || math.IsInf(c.value, 0) || !c.ok {
				return apperrors.NewValidationError(c.field, fmt.Sprintf("row %d: %v %s", row, c.value, c.msg), c.value)
			}
		}
	}
	return nil
}
