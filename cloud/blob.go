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

package cloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// Archiver uploads the grid files of completed setups to a bucket, under
// <prefix>/<run ID>/<setup ID>/<file name>. It implements
// gridcollect.Archiver.
type Archiver struct {
	bucketURL string
	runID     string

	// NewBackOff returns the retry policy for each upload. The default is
	// exponential backoff giving up after 5 minutes.
	NewBackOff func() backoff.BackOff

	Log logrus.FieldLogger
}

// NewArchiver returns an Archiver writing to the bucket at bucketURL (see
// OpenBucket) for the run with the given ID.
func NewArchiver(bucketURL, runID string) *Archiver {
	return &Archiver{
		bucketURL: bucketURL,
		runID:     runID,
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 5 * time.Minute
			return b
		},
		Log: logrus.StandardLogger(),
	}
}

// Key returns the blob key file is stored under for setupID, relative to the
// bucket prefix.
func (a *Archiver) Key(setupID int, file string) string {
	return path.Join(a.runID, strconv.Itoa(setupID), filepath.Base(file))
}

// Archive uploads files, retrying each failed upload.
func (a *Archiver) Archive(ctx context.Context, setupID int, files []string) error {
	bucket, prefix, err := OpenBucket(ctx, a.bucketURL)
	if err != nil {
		return err
	}
	defer bucket.Close()
	for _, f := range files {
		key := path.Join(prefix, a.Key(setupID, f))
		log := a.Log.WithFields(logrus.Fields{"setup": setupID, "file": f, "key": key})
		err := backoff.RetryNotify(
			func() error { return writeBlob(ctx, bucket, key, f) },
			backoff.WithContext(a.NewBackOff(), ctx),
			func(err error, d time.Duration) {
				log.WithError(err).Warnf("archiving; retrying in %v", d)
			},
		)
		if err != nil {
			return err
		}
		log.Debug("archived grid file")
	}
	a.Log.WithFields(logrus.Fields{
		"setup":  setupID,
		"files":  len(files),
		"bucket": a.bucketURL,
	}).Info("archived setup")
	return nil
}

// writeBlob copies the named file to the given key of bucket.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key, name string) error {
	r, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("cloud: opening %s for upload: %v", name, err)
	}
	defer r.Close()
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %v", key, err)
	}
	if _, err = io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %v", key, err)
	}
	return nil
}
