/*
Copyright © 2019 the gridcollect authors.
This file is part of gridcollect.

gridcollect is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

gridcollect is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with gridcollect.  If not, see <http://www.gnu.org/licenses/>.
*/

package gridcollect

import (
	"context"
	"errors"
)

// Receiver delivers inbound messages. Receive blocks until a message is
// available or a fault occurs. Errors should be classifiable with Classify.
type Receiver interface {
	Receive(ctx context.Context) (*Message, error)
}

// Fault is the class of an error returned by a Receiver.
type Fault int

// Receiver fault classes.
const (
	// FaultTransient is a timeout or connection problem. Receiving
	// again may succeed.
	FaultTransient Fault = iota

	// FaultMalformed is a payload that could not be decoded. It is skipped.
	FaultMalformed

	// FaultClosed means no more messages will arrive, including because
	// the context of the receive is done. It ends collection like a
	// finish message.
	FaultClosed
)

func (f Fault) String() string {
	switch f {
	case FaultMalformed:
		return "malformed"
	case FaultClosed:
		return "closed"
	default:
		return "transient"
	}
}

var (
	// ErrTimeout is returned by receivers when no message arrived in time.
	ErrTimeout = errors.New("gridcollect: receive timed out")

	// ErrClosed is returned by receivers that will not deliver any more messages.
	ErrClosed = errors.New("gridcollect: receiver closed")
)

// Classify returns the fault class of an error returned by a Receiver.
// Errors that are not recognized are transient.
func Classify(err error) Fault {
	var m *MalformedError
	switch {
	case errors.As(err, &m):
		return FaultMalformed
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FaultClosed
	default:
		return FaultTransient
	}
}

// FatalError is returned by the Collector when results can no longer be
// persisted. Collection cannot continue after it.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "gridcollect: fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal reports whether err stops collection.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
