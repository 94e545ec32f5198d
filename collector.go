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
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
)

// Progress is notified as rows are flushed and setups completed.
type Progress interface {
	RowFlushed(setupID, row int, noData bool) error
	SetupCompleted(setupID int, files []string) error
}

// Archiver stores the files of a completed setup somewhere else.
type Archiver interface {
	Archive(ctx context.Context, setupID int, files []string) error
}

// Collector consumes result messages for a set of setups and writes their
// grids. Messages are processed one at a time and none of its methods may be
// called concurrently.
type Collector struct {
	// Provisioner creates the output directories of a setup before its
	// first row is written. Failure is fatal. The default is DirProvisioner.
	Provisioner Provisioner

	// Progress and Archiver are optional.
	Progress Progress
	Archiver Archiver

	// ForceOnFinish makes a finish message force-complete every setup
	// that is still collecting, instead of leaving its files short.
	ForceOnFinish bool

	// Backoff sets the wait after a transient receive fault. It is reset
	// after every successful receive. The default is exponential.
	Backoff backoff.BackOff

	Log logrus.FieldLogger

	vars     Variables
	configs  map[int]SetupConfig
	ids      []int
	active   map[int]*setup
	complete map[int]bool
	finished bool
	received int
}

// NewCollector returns a Collector for the given variables and setups.
func NewCollector(vars Variables, setups []SetupConfig) (*Collector, error) {
	if err := vars.Init(); err != nil {
		return nil, err
	}
	if len(setups) == 0 {
		return nil, fmt.Errorf("gridcollect: no setups specified")
	}
	c := &Collector{
		Provisioner: DirProvisioner{},
		Log:         logrus.StandardLogger(),
		vars:        vars,
		configs:     make(map[int]SetupConfig, len(setups)),
		active:      make(map[int]*setup),
		complete:    make(map[int]bool),
	}
	for _, s := range setups {
		if _, ok := c.configs[s.ID]; ok {
			return nil, fmt.Errorf("gridcollect: setup %d specified more than once", s.ID)
		}
		if err := s.check(); err != nil {
			return nil, err
		}
		c.configs[s.ID] = s
		c.ids = append(c.ids, s.ID)
	}
	sort.Ints(c.ids)
	return c, nil
}

// Variables returns the variables the collector writes.
func (c *Collector) Variables() Variables { return c.vars }

// Done reports whether collection is over: either a finish message
// arrived or every setup is complete.
func (c *Collector) Done() bool {
	return c.finished || len(c.complete) == len(c.configs)
}

// Run receives and processes messages until Done. Transient receive faults
// are logged and followed by a backoff wait; malformed messages are logged
// and skipped. Once ctx is done, Run finishes as if a finish message had
// arrived. Run returns early only with a *FatalError.
func (c *Collector) Run(ctx context.Context, r Receiver) error {
	if err := c.prime(ctx); err != nil {
		return err
	}
	b := c.Backoff
	if b == nil {
		eb := backoff.NewExponentialBackOff()
		eb.MaxElapsedTime = 0
		b = eb
	}
	for !c.Done() {
		if err := ctx.Err(); err != nil {
			c.Log.WithError(err).Info("stopping")
			if err := c.Finish(ctx); err != nil {
				return err
			}
			break
		}
		m, err := r.Receive(ctx)
		if err != nil {
			switch f := Classify(err); f {
			case FaultClosed:
				c.Log.WithError(err).Info("receiver closed")
				if err := c.Finish(ctx); err != nil {
					return err
				}
			case FaultMalformed:
				c.Log.WithError(err).WithField("fault", f).Warn("skipping message")
			default:
				d := b.NextBackOff()
				if d == backoff.Stop {
					d = time.Second
				}
				c.Log.WithError(err).WithField("fault", f).Errorf("receiving; retrying in %v", d)
				select {
				case <-ctx.Done():
				case <-time.After(d):
				}
			}
			continue
		}
		b.Reset()
		if err := c.Process(ctx, m); err != nil {
			if IsFatal(err) {
				return err
			}
			c.Log.WithError(err).Warn("skipping message")
		}
	}
	c.logIncomplete()
	return nil
}

// Process handles one message. Errors other than *FatalError concern only
// the message itself.
func (c *Collector) Process(ctx context.Context, m *Message) error {
	if m == nil {
		return malformed("empty message")
	}
	c.received++
	switch m.Type {
	case TypeFinish:
		c.Log.Info("received finish message")
		return c.Finish(ctx)
	case TypeAbsentRow:
		if m.CustomID == nil || m.CustomID.SetupID == nil || m.CustomID.Row == nil {
			return malformed("absent-row message needs customId.setup_id and customId.row")
		}
		return c.MarkRowAbsent(ctx, *m.CustomID.SetupID, *m.CustomID.Row)
	case TypeResult:
	default:
		return malformed("unknown message type %q", m.Type)
	}

	contrib, err := c.vars.Normalize(m)
	if err != nil {
		return err
	}
	log := c.Log.WithFields(logrus.Fields{
		"setup": contrib.SetupID,
		"row":   contrib.Row,
		"col":   contrib.Col,
	})
	s, err := c.setupFor(contrib.SetupID)
	if err != nil {
		return err
	}
	if s == nil {
		log.Warn("result for a completed setup; dropping")
		return nil
	}
	if err := c.checkRow(s, contrib.Row); err != nil {
		return err
	}
	if contrib.Col >= s.cfg.Header.Ncols {
		return malformed("column %d outside grid with %d columns", contrib.Col, s.cfg.Header.Ncols)
	}
	if contrib.Row < s.next {
		log.Warn("result for a row that has already been written; dropping")
		return nil
	}
	for _, reason := range contrib.Failures {
		log.WithField("reason", reason).Warn("run failed")
	}
	if dup := s.tracker.Add(contrib); dup {
		log.Debug("repeated result for cell")
	}
	log.WithFields(logrus.Fields{
		"received":  c.received,
		"next_row":  s.next,
		"remaining": s.tracker.Remaining(contrib.Row),
	}).Debug("received result")
	return c.flush(ctx, s)
}

// MarkRowAbsent records that row of a setup holds no data at all, making it
// complete. Any rows it was blocking are flushed.
func (c *Collector) MarkRowAbsent(ctx context.Context, setupID, row int) error {
	s, err := c.setupFor(setupID)
	if err != nil || s == nil {
		return err
	}
	if err := c.checkRow(s, row); err != nil {
		return err
	}
	if row < s.next {
		return nil
	}
	if s.tracker.Arrived(row) > 0 {
		c.Log.WithFields(logrus.Fields{"setup": setupID, "row": row}).
			Warn("row marked absent after results arrived for it")
	}
	s.tracker.MarkAbsent(row)
	return c.flush(ctx, s)
}

// ForceComplete flushes every remaining row of a setup, whether or not all
// of its cells have arrived, and finishes its files. Cells that never
// arrived are written as no-data.
func (c *Collector) ForceComplete(ctx context.Context, setupID int) error {
	s, err := c.setupFor(setupID)
	if err != nil || s == nil {
		return err
	}
	c.Log.WithFields(logrus.Fields{
		"setup":    setupID,
		"next_row": s.next,
	}).Warn("forcing setup to complete")
	s.forced = true
	return c.flush(ctx, s)
}

// Finish ends collection. If ForceOnFinish is set, every incomplete setup is
// force-completed first.
func (c *Collector) Finish(ctx context.Context) error {
	if c.ForceOnFinish {
		for _, id := range c.ids {
			if c.complete[id] {
				continue
			}
			if err := c.ForceComplete(ctx, id); err != nil && IsFatal(err) {
				return err
			}
		}
	}
	c.finished = true
	return nil
}

// SetupStatus describes the progress of a setup.
type SetupStatus struct {
	ID       int
	Complete bool
	NextRow  int
	LastRow  int

	// InFlight are the rows that have received results but can't be
	// written yet.
	InFlight []int

	// Outstanding is the number of cells that have not arrived in the
	// rows that are still to be written.
	Outstanding int

	// Owed is the number of no-data rows not yet written to the files.
	Owed int
}

// Report returns the status of every setup, ordered by ID.
func (c *Collector) Report() []SetupStatus {
	o := make([]SetupStatus, 0, len(c.ids))
	for _, id := range c.ids {
		cfg := c.configs[id]
		st := SetupStatus{ID: id, Complete: c.complete[id], NextRow: cfg.StartRow, LastRow: cfg.LastRow()}
		if st.Complete {
			st.NextRow = st.LastRow + 1
		} else if s, ok := c.active[id]; ok {
			st.NextRow = s.next
			st.InFlight = s.tracker.InFlight()
			st.Owed = s.grids.Owed()
			for r := s.next; r <= st.LastRow; r++ {
				st.Outstanding += s.tracker.Remaining(r)
			}
		} else {
			for r := cfg.StartRow; r <= st.LastRow; r++ {
				st.Outstanding += cfg.expected(r)
			}
		}
		o = append(o, st)
	}
	return o
}

func (c *Collector) logIncomplete() {
	for _, st := range c.Report() {
		if st.Complete {
			continue
		}
		c.Log.WithFields(logrus.Fields{
			"setup":       st.ID,
			"next_row":    st.NextRow,
			"last_row":    st.LastRow,
			"in_flight":   len(st.InFlight),
			"outstanding": st.Outstanding,
		}).Warn("setup is incomplete; its grid files are missing rows")
	}
}

// setupFor returns the state of a setup, creating it on first use. It
// returns nil if the setup is already complete.
func (c *Collector) setupFor(id int) (*setup, error) {
	if c.complete[id] {
		return nil, nil
	}
	if s, ok := c.active[id]; ok {
		return s, nil
	}
	cfg, ok := c.configs[id]
	if !ok {
		return nil, malformed("unknown setup %d", id)
	}
	s := newSetup(cfg, c.vars)
	s.grids.Log = c.Log.WithField("setup", id)
	c.active[id] = s
	return s, nil
}

func (c *Collector) checkRow(s *setup, row int) error {
	if row < s.cfg.StartRow || row > s.cfg.LastRow() {
		return malformed("row %d of setup %d is outside collected rows %d-%d",
			row, s.cfg.ID, s.cfg.StartRow, s.cfg.LastRow())
	}
	return nil
}

// prime flushes setups whose first rows expect no cells, since no message
// may ever arrive for them.
func (c *Collector) prime(ctx context.Context) error {
	for _, id := range c.ids {
		cfg := c.configs[id]
		if c.complete[id] || cfg.expected(cfg.StartRow) != 0 {
			continue
		}
		s, err := c.setupFor(id)
		if err != nil || s == nil {
			return err
		}
		if err := c.flush(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// flush writes rows of s, starting at the next row to be written, for as
// long as they are complete. Write errors are logged; only a failure to
// provision the output directories is returned.
func (c *Collector) flush(ctx context.Context, s *setup) error {
	for s.ready() {
		if !s.provisioned {
			if err := c.provision(s); err != nil {
				return err
			}
		}
		row := s.next
		log := c.Log.WithFields(logrus.Fields{"setup": s.cfg.ID, "row": row})
		if n := s.tracker.Remaining(row); n > 0 {
			log.WithField("missing", n).Warn("writing row with missing cells")
		}
		r := Aggregate(s.tracker.Take(row), s.cfg.Header.Ncols, c.vars)
		if err := s.grids.WriteRow(r); err != nil {
			log.WithError(err).Error("writing grid row")
		}
		if s.audit != nil {
			if err := s.audit.WriteRow(r); err != nil {
				log.WithError(err).Error("writing audit log")
			}
		}
		if c.Progress != nil {
			if err := c.Progress.RowFlushed(s.cfg.ID, row, r.NoData); err != nil {
				log.WithError(err).Error("recording progress")
			}
		}
		s.next++
		log.WithFields(logrus.Fields{
			"no_data":   r.NoData,
			"owed":      s.grids.Owed(),
			"in_flight": len(s.tracker.rows),
		}).Debug("wrote row")
	}
	if s.done() {
		c.completeSetup(ctx, s)
	}
	return nil
}

func (c *Collector) provision(s *setup) error {
	dirs := []string{s.cfg.OutputDir}
	if s.cfg.AuditDir != "" {
		dirs = append(dirs, s.cfg.AuditDir)
	}
	for _, d := range dirs {
		if err := c.Provisioner.Provision(d); err != nil {
			c.Log.WithError(err).WithField("setup", s.cfg.ID).Error("couldn't create output directory")
			return &FatalError{Err: fmt.Errorf("setup %d: provisioning %s: %w", s.cfg.ID, d, err)}
		}
	}
	s.provisioned = true
	return nil
}

func (c *Collector) completeSetup(ctx context.Context, s *setup) {
	id := s.cfg.ID
	log := c.Log.WithField("setup", id)
	if err := s.grids.Finish(); err != nil {
		log.WithError(err).Error("finishing grid files")
	}
	files := s.grids.Files()
	if c.Progress != nil {
		if err := c.Progress.SetupCompleted(id, files); err != nil {
			log.WithError(err).Error("recording progress")
		}
	}
	if c.Archiver != nil && len(files) > 0 {
		if err := c.Archiver.Archive(ctx, id, files); err != nil {
			log.WithError(err).Error("archiving grid files")
		}
	}
	delete(c.active, id)
	c.complete[id] = true
	log.WithFields(logrus.Fields{
		"files":     len(files),
		"remaining": len(c.configs) - len(c.complete),
	}).Info("setup complete")
	if c.Done() {
		c.Log.Info("all results received")
	}
}
