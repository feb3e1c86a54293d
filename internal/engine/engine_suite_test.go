package engine_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/katalvlaran/amrtree/internal/engine"
	"github.com/katalvlaran/amrtree/internal/runtime"
	"github.com/katalvlaran/amrtree/maskedbox"
	"github.com/katalvlaran/amrtree/reader"
)

// ThresholdModeSuite exercises resolveThreshold's two modes end-to-end
// through engine.Run on the same single-block domain, varying only the
// threshold configuration.
type ThresholdModeSuite struct {
	suite.Suite
}

func (s *ThresholdModeSuite) newFlatReader(value float64) reader.Reader {
	rdr, err := reader.NewSynthetic(reader.SyntheticConfig{
		Min: [3]int{0, 0, 0}, Max: [3]int{3, 3, 3},
		BlocksPerAxis: [3]int{1, 1, 1},
		GhostWidth:    1,
		CellVolume:    1.0,
		Value:         func(p [3]int) float64 { return value },
	})
	require.NoError(s.T(), err)
	return rdr
}

// TestAbsoluteModeDemotesBelowRho checks that ModeAbsolute demotes a flat
// field entirely below rho to Low, leaving no surviving component.
func (s *ThresholdModeSuite) TestAbsoluteModeDemotesBelowRho() {
	opts := engine.Options{
		Threshold: maskedbox.ThresholdConfig{Mode: maskedbox.ModeAbsolute, Rho: 5.0, Dim: 3},
		MinCells:  1,
		Runtime:   runtime.Config{Threads: 1},
	}

	var diag bytes.Buffer
	err := engine.Run(context.Background(), s.newFlatReader(1.0), opts, nil, engine.Outputs{Diagram: &diag})
	require.NoError(s.T(), err)
	require.Empty(s.T(), strings.TrimSpace(diag.String()), "every cell is below rho, so no component should survive")
}

// TestRelativeModeScalesByMean checks that ModeRelative's mean-derived
// threshold (rho * mean) passes a flat field whose value sits well above
// the scaled mean.
func (s *ThresholdModeSuite) TestRelativeModeScalesByMean() {
	opts := engine.Options{
		Threshold: maskedbox.ThresholdConfig{Mode: maskedbox.ModeRelative, Rho: 0.5, Dim: 3},
		MinCells:  1,
		Runtime:   runtime.Config{Threads: 1},
	}

	var diag bytes.Buffer
	err := engine.Run(context.Background(), s.newFlatReader(1.0), opts, nil, engine.Outputs{Diagram: &diag})
	require.NoError(s.T(), err)

	lines := strings.Split(strings.TrimSpace(diag.String()), "\n")
	require.Len(s.T(), lines, 1, "rho=0.5 against a mean of 1.0 resolves a threshold of 0.5, well under every cell's value")
	require.Contains(s.T(), lines[0], "+Inf")
}

func TestThresholdModeSuite(t *testing.T) {
	suite.Run(t, new(ThresholdModeSuite))
}
