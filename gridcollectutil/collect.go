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

package gridcollectutil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/gridcollect"
	"github.com/spatialmodel/gridcollect/cloud"
	"github.com/spatialmodel/gridcollect/internal/hash"
	"github.com/spatialmodel/gridcollect/internal/ledger"
	"github.com/spatialmodel/gridcollect/transport"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// loadSetups reads the setups and variables from SetupFile.
func (cfg *Cfg) loadSetups() ([]gridcollect.SetupConfig, gridcollect.Variables, error) {
	f, err := ReadSetupFile(cfg.expand("SetupFile"))
	if err != nil {
		return nil, nil, err
	}
	vars, err := f.Variables()
	if err != nil {
		return nil, nil, err
	}
	setups, err := f.Setups(cfg.expand("OutputDir"), cfg.expand("AuditDir"))
	if err != nil {
		return nil, nil, err
	}
	return setups, vars, nil
}

// collect runs the collect command. It stops on SIGINT or SIGTERM as if
// the input had ended.
func (cfg *Cfg) collect(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setups, vars, err := cfg.loadSetups()
	if err != nil {
		return err
	}
	c, err := gridcollect.NewCollector(vars, setups)
	if err != nil {
		return err
	}
	runID := ledger.NewRunID()
	log := cfg.Log.WithField("run", runID)
	c.Log = log
	c.ForceOnFinish = cfg.GetBool("ForceOnFinish")

	if path := cfg.expand("LedgerFile"); path != "" {
		l, err := ledger.Open(path, runID, gridcollect.Version, hash.Hash(setups))
		if err != nil {
			return err
		}
		defer l.Close()
		c.Progress = l
	}
	if bucket := cfg.expand("ArchiveBucket"); bucket != "" {
		a := cloud.NewArchiver(bucket, runID)
		a.Log = log
		c.Archiver = a
	}

	r, closeReceiver, err := cfg.receiver(cmd, log)
	if err != nil {
		return err
	}
	defer closeReceiver()

	log.WithFields(logrus.Fields{
		"setups":    len(setups),
		"variables": len(vars),
		"transport": cfg.GetString("Transport"),
	}).Info("collecting results")
	err = c.Run(ctx, r)
	printReport(cmd.OutOrStdout(), c.Report())
	return err
}

// receiver returns the receiver selected by the Transport option and a
// function that releases it.
func (cfg *Cfg) receiver(cmd *cobra.Command, log logrus.FieldLogger) (gridcollect.Receiver, func(), error) {
	timeout, err := cast.ToDurationE(cfg.Get("ReceiveTimeout"))
	if err != nil {
		return nil, nil, fmt.Errorf("gridcollect: ReceiveTimeout: %v", err)
	}
	addr := cfg.GetString("Addr")
	switch t := strings.ToLower(cfg.GetString("Transport")); t {
	case "stdin":
		r := transport.NewLineReceiver(cmd.InOrStdin())
		return r, func() { r.Close() }, nil
	case "file":
		f, err := os.Open(cfg.expand("Input"))
		if err != nil {
			return nil, nil, fmt.Errorf("gridcollect: opening input: %v", err)
		}
		r := transport.NewLineReceiver(f)
		return r, func() {
			r.Close()
			f.Close()
		}, nil
	case "websocket":
		ws := transport.NewWebSocketReceiver(timeout)
		ws.Log = log
		mux := http.NewServeMux()
		mux.Handle("/results", ws)
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			MaxHeaderBytes:    1 << 20,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("websocket server stopped")
				ws.Close()
			}
		}()
		log.Infof("listening for websocket connections on %s/results", addr)
		return ws, func() {
			ws.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}, nil
	case "rpc":
		r, err := transport.NewRPCReceiver(timeout)
		if err != nil {
			return nil, nil, err
		}
		l, err := r.Listen(addr)
		if err != nil {
			return nil, nil, err
		}
		log.Infof("listening for RPC calls on %s", l.Addr())
		return r, func() {
			r.Close()
			l.Close()
		}, nil
	default:
		return nil, nil, fmt.Errorf("gridcollect: invalid Transport %q", t)
	}
}

// printReport prints the completeness of each setup.
func printReport(w io.Writer, report []gridcollect.SetupStatus) {
	for _, s := range report {
		if s.Complete {
			fmt.Fprintf(w, "setup %d: complete through row %d\n", s.ID, s.LastRow)
			continue
		}
		fmt.Fprintf(w, "setup %d: INCOMPLETE: next row %d of %d, %d rows in flight, %d cells outstanding\n",
			s.ID, s.NextRow, s.LastRow, len(s.InFlight), s.Outstanding)
	}
}
