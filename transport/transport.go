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

// Package transport provides gridcollect.Receivers for the ways workers
// deliver their results: JSON lines on a stream, messages over a websocket
// and calls over net/rpc.
package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/spatialmodel/gridcollect"
)

// Empty is used for passing content-less messages.
type Empty struct{}

// Decode decodes one JSON message. Payloads that can't be decoded are
// reported as *gridcollect.MalformedError.
func Decode(b []byte) (*gridcollect.Message, error) {
	m := new(gridcollect.Message)
	if err := json.Unmarshal(b, m); err != nil {
		return nil, &gridcollect.MalformedError{Reason: err.Error()}
	}
	return m, nil
}

type delivery struct {
	m   *gridcollect.Message
	err error
}

// queue hands messages from any number of producers to a single
// Receive caller.
type queue struct {
	ch      chan delivery
	timeout time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

func newQueue(timeout time.Duration) queue {
	return queue{
		ch:      make(chan delivery),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// put blocks until d is received, the queue is closed or ctx is done. It
// reports whether d was received.
func (q *queue) put(ctx context.Context, d delivery) bool {
	select {
	case q.ch <- d:
		return true
	case <-q.done:
	case <-ctx.Done():
	}
	return false
}

// Receive returns the next message. It returns gridcollect.ErrTimeout if
// nothing arrives within the timeout and gridcollect.ErrClosed once the
// receiver is closed.
func (q *queue) Receive(ctx context.Context) (*gridcollect.Message, error) {
	var timeout <-chan time.Time
	if q.timeout > 0 {
		t := time.NewTimer(q.timeout)
		defer t.Stop()
		timeout = t.C
	}
	select {
	case d := <-q.ch:
		return d.m, d.err
	case <-q.done:
		return nil, gridcollect.ErrClosed
	case <-timeout:
		return nil, gridcollect.ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting messages. Pending and later calls to Receive
// return gridcollect.ErrClosed.
func (q *queue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}
