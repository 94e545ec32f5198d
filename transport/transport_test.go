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
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spatialmodel/gridcollect"
)

const lines = `{"type": "result", "customId": {"setup_id": 1, "row": 0, "col": 0}, "data": [{"cycle_id": 1, "year": 2000, "crop_label": "wheat", "values": {"V": 1}}]}

{"type": "result", "customId": {"setup_id": 1, "row": 0
{"type": "finish"}
`

func TestLineReceiver(t *testing.T) {
	r := NewLineReceiver(strings.NewReader(lines))
	ctx := context.Background()

	m, err := r.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != gridcollect.TypeResult || *m.CustomID.SetupID != 1 || m.Data[0].Values["V"] != 1 {
		t.Errorf("message = %+v", m)
	}

	_, err = r.Receive(ctx)
	if gridcollect.Classify(err) != gridcollect.FaultMalformed {
		t.Errorf("got %v, want a malformed message", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error %q doesn't give the line", err)
	}

	m, err = r.Receive(ctx)
	if err != nil || m.Type != gridcollect.TypeFinish {
		t.Errorf("got %+v, %v", m, err)
	}
	if _, err = r.Receive(ctx); !errors.Is(err, gridcollect.ErrClosed) {
		t.Errorf("got %v at end of input", err)
	}
}

func TestLineReceiverCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLineReceiver(strings.NewReader(lines)).Receive(ctx)
	if gridcollect.Classify(err) != gridcollect.FaultClosed {
		t.Errorf("got %v", err)
	}
}

func TestLineReceiverUnreadable(t *testing.T) {
	long := `{"type": "result", "note": "` + strings.Repeat("x", 17*1024*1024) + `"}`
	for name, r := range map[string]io.Reader{
		"long line":  strings.NewReader(long + "\n" + `{"type": "finish"}` + "\n"),
		"read error": iotest.ErrReader(errors.New("input/output error")),
	} {
		t.Run(name, func(t *testing.T) {
			lr := NewLineReceiver(r)
			defer lr.Close()
			_, err := lr.Receive(context.Background())
			if err == nil || gridcollect.Classify(err) != gridcollect.FaultClosed {
				t.Fatalf("got %v, want the receiver to be closed", err)
			}
			if !strings.Contains(err.Error(), "line 1") {
				t.Errorf("error %q doesn't give the line", err)
			}
			if _, err := lr.Receive(context.Background()); !errors.Is(err, gridcollect.ErrClosed) {
				t.Errorf("got %v after the read failed", err)
			}
		})
	}
}

func TestLineReceiverIdle(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	lr := NewLineReceiver(pr)
	defer lr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := lr.Receive(ctx)
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Receive blocked past its deadline")
	}

	go pw.Write([]byte(`{"type": "finish"}` + "\n"))
	m, err := lr.Receive(context.Background())
	if err != nil || m.Type != gridcollect.TypeFinish {
		t.Errorf("got %+v, %v", m, err)
	}
}

func TestWebSocketReceiver(t *testing.T) {
	ws := NewWebSocketReceiver(5 * time.Second)
	ws.Log, _ = test.NewNullLogger()
	srv := httptest.NewServer(ws)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	go func() {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type": "absent-row", "customId": {"setup_id": 2, "row": 4}}`))
		conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
	}()

	ctx := context.Background()
	m, err := ws.Receive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != gridcollect.TypeAbsentRow || *m.CustomID.Row != 4 {
		t.Errorf("message = %+v", m)
	}
	if _, err := ws.Receive(ctx); gridcollect.Classify(err) != gridcollect.FaultMalformed {
		t.Errorf("got %v, want a malformed message", err)
	}

	ws.timeout = 10 * time.Millisecond
	if _, err := ws.Receive(ctx); !errors.Is(err, gridcollect.ErrTimeout) {
		t.Errorf("got %v, want a timeout", err)
	}
	if gridcollect.Classify(gridcollect.ErrTimeout) != gridcollect.FaultTransient {
		t.Error("timeouts should be transient")
	}

	ws.Close()
	if _, err := ws.Receive(ctx); !errors.Is(err, gridcollect.ErrClosed) {
		t.Errorf("got %v after close", err)
	}
}

func TestRPCReceiver(t *testing.T) {
	r, err := NewRPCReceiver(0)
	if err != nil {
		t.Fatal(err)
	}
	l, err := r.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	c, err := Dial(l.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	setup, row, col := 3, 1, 2
	sent := &gridcollect.Message{
		Type:     gridcollect.TypeResult,
		CustomID: &gridcollect.CustomID{SetupID: &setup, Row: &row, Col: &col},
		Data:     []gridcollect.CycleData{{RunFailed: true, Error: "no soil"}},
	}
	errc := make(chan error, 1)
	go func() { errc <- c.Submit(sent) }()

	m, err := r.Receive(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := <-errc; err != nil {
		t.Fatal(err)
	}
	if *m.CustomID.Col != 2 || !m.Data[0].RunFailed || m.Data[0].Error != "no soil" {
		t.Errorf("message = %+v", m)
	}

	r.Close()
	if err := c.Submit(sent); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("submit after close: %v", err)
	}
}
