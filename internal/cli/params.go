package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/grid"
)

// ParamSet holds the six raw parameter arrays before they become a grid.
type ParamSet struct {
	H, Eta, Rho, T, K, Xi []float64
}

// Grid builds the grid, sorted when ordered is set.
func (p ParamSet) Grid(ordered bool) (*grid.Grid, error) {
	if ordered {
		return grid.NewOrdered(p.H, p.Eta, p.Rho, p.T, p.K, p.Xi)
	}
	return grid.New(p.H, p.Eta, p.Rho, p.T, p.K, p.Xi)
}

// ParamFile returns the path holding one parameter array:
// <path>.<stem><name>.txt.
func ParamFile(path, stem, name string) string {
	return fmt.Sprintf("%s.%s%s.txt", path, stem, name)
}

// LoadParams reads the six parameter files of a run.
//
// Parameters:
//   - path: The common path prefix.
//   - stem: The file stem; files are <path>.<stem>X.txt for X in
//     H, eta, rho, T, K, xi.
//
// Returns:
//   - ParamSet: The arrays, possibly of different lengths; grid
//     construction checks them.
//   - error: An apperrors.IOError for a missing or malformed file.
func LoadParams(path, stem string) (ParamSet, error) {
	var p ParamSet
	files := []struct {
		name string
		dst  *[]float64
	}{
		{"H", &p.H}, {"eta", &p.Eta}, {"rho", &p.Rho},
		{"T", &p.T}, {"K", &p.K}, {"xi", &p.Xi},
	}
	for _, f := range files {
		v, err := ReadVector(ParamFile(path, stem, f.name))
		if err != nil {
			return ParamSet{}, err
		}
		*f.dst = v
	}
	return p, nil
}

// ReadVector reads one float per line. Blank lines and lines starting with
// '#' are skipped.
func ReadVector(name string) ([]float64, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, apperrors.NewIOError("open", name, err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, apperrors.NewIOError("parse", fmt.Sprintf("%s:%d", name, line), err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, apperrors.NewIOError("read", name, err)
	}
	return values, nil
}
