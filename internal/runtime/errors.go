package runtime

import "github.com/pkg/errors"

var (
	ErrZeroSize          = errors.New("zero-sized data")
	ErrSubmission        = errors.New("task submission failed")
	ErrWhereNotSupported = errors.New("worker kinds not supported")
	ErrAlreadyAcquired   = errors.New("handle already acquired")
	ErrNotLocal          = errors.New("handle data not present on this rank")
	ErrUnregistered      = errors.New("handle unregistered")
	ErrTransfer          = errors.New("transfer failed")
)
