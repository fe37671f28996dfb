package feeds

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrEmptyCollection  = errors.New("feed collection is empty")
	ErrInvalidFeed      = errors.New("feed must have a non-empty url and name")
	ErrInvalidStatus    = errors.New("invalid entry status")
	ErrStatusRegression = errors.New("entry status can't go back from read to unread")
	ErrSuperseded       = errors.New("load superseded by a newer request")
	ErrFetch            = errors.New("fetch failed")
)

// FetchError is delivered through a Load when the fetcher fails
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFetch) match any FetchError
func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func outOfRange(index, length int) error {
	return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, length)
}
