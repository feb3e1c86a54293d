package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/amrtree/internal/errs"
)

func TestKindClassification(t *testing.T) {
	require := require.New(t)

	require.True(errors.Is(errs.Config("bad %s", "mode"), errs.ErrConfig))
	require.False(errors.Is(errs.Config("bad"), errs.ErrNumerical))

	require.True(errors.Is(errs.Numerical("mean <= 0"), errs.ErrNumerical))

	pv := errs.Protocol(7, 3, "duplicate mapping")
	require.True(errors.Is(pv, errs.ErrProtocol))
	require.Equal(7, pv.BlockGID)
	require.Equal(3, pv.Round)

	inner := errors.New("disk full")
	re := errs.Resource(inner, "spill failed")
	require.True(errors.Is(re, errs.ErrResource))
	require.ErrorIs(re, inner)
}
