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

package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spatialmodel/gridcollect"
)

// LineReceiver reads one JSON message per line from a stream, such as
// standard input or a file results were spooled to. The stream is read in
// the background, so Receive returns as soon as its context is done even if
// no line is arriving.
type LineReceiver struct {
	r     io.Reader
	lines chan delivery

	start     sync.Once
	done      chan struct{}
	closeOnce sync.Once
}

// NewLineReceiver returns a receiver reading from r.
func NewLineReceiver(r io.Reader) *LineReceiver {
	return &LineReceiver{
		r:     r,
		lines: make(chan delivery),
		done:  make(chan struct{}),
	}
}

// Receive returns the message on the next non-empty line. It returns
// gridcollect.ErrClosed at the end of the stream, and an error wrapping it
// if the stream can't be read any further, such as after an I/O error or a
// line longer than 16 MiB.
func (l *LineReceiver) Receive(ctx context.Context) (*gridcollect.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.start.Do(func() { go l.scan() })
	select {
	case d, ok := <-l.lines:
		if !ok {
			return nil, gridcollect.ErrClosed
		}
		return d.m, d.err
	case <-l.done:
		return nil, gridcollect.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops the background reader once its current read returns. It
// does not close the underlying stream.
func (l *LineReceiver) Close() error {
	l.closeOnce.Do(func() { close(l.done) })
	return nil
}

func (l *LineReceiver) scan() {
	defer close(l.lines)
	s := bufio.NewScanner(l.r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for s.Scan() {
		line++
		b := bytes.TrimSpace(s.Bytes())
		if len(b) == 0 {
			continue
		}
		var d delivery
		m := new(gridcollect.Message)
		if err := json.Unmarshal(b, m); err != nil {
			d.err = &gridcollect.MalformedError{Reason: fmt.Sprintf("line %d: %v", line, err)}
		} else {
			d.m = m
		}
		if !l.send(d) {
			return
		}
	}
	if err := s.Err(); err != nil {
		l.send(delivery{err: fmt.Errorf("gridcollect: reading line %d: %v: %w", line+1, err, gridcollect.ErrClosed)})
	}
}

func (l *LineReceiver) send(d delivery) bool {
	select {
	case l.lines <- d:
		return true
	case <-l.done:
		return false
	}
}
