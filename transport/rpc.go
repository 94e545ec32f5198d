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
	"net"
	"net/http"
	"net/rpc"
	"time"

	"github.com/spatialmodel/gridcollect"
)

// ServiceName is the name workers use to call the collector over RPC,
// as in "Collector.Submit".
const ServiceName = "Collector"

// Service receives results over RPC. It should not be interacted with
// directly, but it is exported to meet RPC requirements.
type Service struct {
	q *queue
}

// Submit queues a message. It returns once the message has been taken by
// the collector. It meets the requirements for use with rpc.Call.
func (s *Service) Submit(m *gridcollect.Message, _ *Empty) error {
	if !s.q.put(context.Background(), delivery{m: m}) {
		return gridcollect.ErrClosed
	}
	return nil
}

// RPCReceiver accepts results from workers calling Collector.Submit over
// HTTP-tunneled net/rpc.
type RPCReceiver struct {
	queue
	server *rpc.Server
}

// NewRPCReceiver returns a receiver whose Receive method gives up after
// timeout. A timeout of zero waits indefinitely.
func NewRPCReceiver(timeout time.Duration) (*RPCReceiver, error) {
	r := &RPCReceiver{
		queue:  newQueue(timeout),
		server: rpc.NewServer(),
	}
	if err := r.server.RegisterName(ServiceName, &Service{q: &r.queue}); err != nil {
		return nil, err
	}
	return r, nil
}

// Serve handles RPC requests on l until l is closed.
func (r *RPCReceiver) Serve(l net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, r.server)
	return http.Serve(l, mux)
}

// Listen starts listening for requests on addr in the background and
// returns the listener. Closing it stops the server.
func (r *RPCReceiver) Listen(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	go r.Serve(l)
	return l, nil
}

// Client submits results to a collector listening for RPC requests.
type Client struct {
	c *rpc.Client
}

// Dial connects to the collector at addr.
func Dial(addr string) (*Client, error) {
	c, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Client{c: c}, nil
}

// Submit sends m to the collector.
func (c *Client) Submit(m *gridcollect.Message) error {
	return c.c.Call(ServiceName+".Submit", m, &Empty{})
}

// Close closes the connection.
func (c *Client) Close() error { return c.c.Close() }
