// Package telemetry records training telemetry: scalar series as
// structured log lines and periodic sample grids as PNG files. Each
// resolution phase renews the recorder into a fresh run segment.
package telemetry

import "os"
import "path/filepath"
import "strconv"

import "github.com/google/uuid"
import "github.com/pkg/errors"
import "github.com/sirupsen/logrus"

import "github.com/neurlang/stylegan/tensor"

// Recorder is one experiment's telemetry sink.
type Recorder struct {
	root    string
	segment string
	log     *logrus.Logger
	file    *os.File
	iter    int64
}

// NewRecorder opens a recorder rooted at dir/name.
func NewRecorder(name, dir string) (*Recorder, error) {
	root := filepath.Join(dir, name)
	if err := os.MkdirAll(root, 0775); err != nil {
		return nil, errors.Wrap(err, "telemetry: run dir")
	}
	file, err := os.OpenFile(filepath.Join(root, "scalars.log"), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, errors.Wrap(err, "telemetry: scalar log")
	}
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(file)
	return &Recorder{root: root, segment: root, log: log, file: file}, nil
}

// Renew starts a new logical run segment, typically one per resolution
// phase. Segment directories get a short unique suffix so a resumed run
// never overwrites an earlier phase's images.
func (r *Recorder) Renew(segment string) error {
	dir := filepath.Join(r.root, segment+"-"+uuid.New().String()[:8])
	if err := os.MkdirAll(dir, 0775); err != nil {
		return errors.Wrap(err, "telemetry: segment dir")
	}
	r.segment = dir
	r.log.WithField("segment", segment).Info("renew")
	return nil
}

// Iter advances the sample counter scalars and images are indexed by.
func (r *Recorder) Iter(n int) {
	r.iter += int64(n)
}

// CurrentIter returns the sample counter.
func (r *Recorder) CurrentIter() int64 {
	return r.iter
}

// AddScalar records one scalar observation.
func (r *Recorder) AddScalar(tag string, value float64) {
	r.log.WithFields(logrus.Fields{"iter": r.iter, "tag": tag, "value": value}).Info("scalar")
}

// AddImages renders a batch as a PNG grid in the current segment. Values
// are expected in [0,1].
func (r *Recorder) AddImages(tag string, batch *tensor.Tensor, c, h, w int) error {
	path := filepath.Join(r.segment, tag+"_"+strconv.FormatInt(r.iter, 10)+".png")
	if err := WriteGrid(path, batch, c, h, w); err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"iter": r.iter, "tag": tag, "file": path}).Info("images")
	return nil
}

// Close releases the scalar log.
func (r *Recorder) Close() error {
	return r.file.Close()
}
