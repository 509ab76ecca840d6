// CLAUDE:SUMMARY Error taxonomy (auth, navigation, acquisition, extraction, insufficient corpus, scoring) and sentinels.
package rfp

import (
	"errors"
	"fmt"
)

// Kind classifies where an error happened and how far it propagates.
type Kind string

const (
	KindAuth               Kind = "auth"
	KindNavigation         Kind = "navigation"
	KindAcquisition        Kind = "acquisition"
	KindExtraction         Kind = "extraction"
	KindInsufficientCorpus Kind = "insufficient_corpus"
	KindScoring            Kind = "scoring"
)

var (
	ErrCredentialsRejected = errors.New("credentials rejected")
	ErrAuthIndeterminate   = errors.New("login outcome indeterminate")
	ErrUnsupportedFormat   = errors.New("unsupported format")
	ErrTooLarge            = errors.New("artifact too large")
	ErrDisallowedType      = errors.New("disallowed artifact type")
	ErrNoDownload          = errors.New("no download link on detail page")
	ErrNoDocuments         = errors.New("no documents extracted")
	ErrInsufficientCorpus  = errors.New("corpus below minimum length")
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal reports whether the error must stop the run. Auth and navigation
// errors are fatal once they reach the coordinator; everything below the
// opportunity level is recorded and the batch continues.
func (e *Error) Fatal() bool {
	return e.Kind == KindAuth || e.Kind == KindNavigation
}

// E builds a classified error.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsFatal reports whether err carries a fatal classification.
func IsFatal(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Fatal()
}
