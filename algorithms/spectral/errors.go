package spectral

import "github.com/RyanBlaney/sonido-resonance/algorithms/common"

// ErrInvalidParameter is returned for non-positive sample rates or resolutions,
// empty signals and malformed segment settings.
var ErrInvalidParameter = common.ErrInvalidParameter
