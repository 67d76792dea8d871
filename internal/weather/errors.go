package weather

import "errors"

// Failure taxonomy of a cycle. Concrete errors wrap one of these together with
// their cause, e.g. fmt.Errorf("%w: %w", ErrUpstream, err).
var (
	// ErrUpstream covers transport errors, timeouts and non-success statuses
	// from the weather provider.
	ErrUpstream = errors.New("upstream error")
	// ErrParse is returned when the provider body is not a JSON object.
	ErrParse = errors.New("parse error")
	// ErrBroker covers connect, declare and publish failures.
	ErrBroker = errors.New("broker error")
)

// Kind is the short label of an error class, used in logs and cycle reports.
type Kind string

const (
	KindUpstream Kind = "upstream"
	KindParse    Kind = "parse"
	KindBroker   Kind = "broker"
	KindInternal Kind = "internal"
)

// ErrorKind classifies err. Errors outside the taxonomy are KindInternal.
func ErrorKind(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrParse):
		return KindParse
	case errors.Is(err, ErrBroker):
		return KindBroker
	default:
		return KindInternal
	}
}
