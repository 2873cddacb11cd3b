package meetpoint

import "github.com/rotisserie/eris"

// The only failures a search reports to its caller. Provider errors are
// absorbed by the stage that saw them.
var (
	ErrLocationUnresolved = eris.New("meetpoint: location could not be resolved")
	ErrOutOfServiceArea   = eris.New("meetpoint: location is outside the service area")
	ErrNoViableCandidates = eris.New("meetpoint: no viable meeting point")
)
