package dialogue

import "errors"

var (
	// ErrValidation is returned for events the controller cannot accept.
	ErrValidation = errors.New("dialogue: invalid event")
	// ErrClosed is returned once the controller has been torn down.
	ErrClosed = errors.New("dialogue: controller closed")
	// ErrGatewayUnavailable is reported when a collaborator is not wired.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	// ErrStaleResponse marks a gateway result that arrived after the
	// conversation moved on. It is logged, never surfaced.
	ErrStaleResponse = errors.New("stale gateway response")
)
