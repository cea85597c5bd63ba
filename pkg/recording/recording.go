// Package recording writes simulation frames to zstd compressed JSONL files
// and reads them back for replay.
package recording

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	simerrors "fdm-printer-sim/pkg/errors"
	"fdm-printer-sim/pkg/pool"
	"fdm-printer-sim/pkg/sim"
)

// Writer appends one JSON line per frame. It is a sim.Observer; write
// errors are kept and reported by Err and Close.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
	frames uint64
	err    error
}

// Create opens a new recording at path, truncating any existing file.
func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, simerrors.StorageError("create recording", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, simerrors.StorageError("create recording", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, simerrors.StorageError("create recording", err)
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// Write appends one frame.
func (w *Writer) Write(frame sim.Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if w.w == nil {
		return simerrors.StorageError("write recording", fmt.Errorf("writer closed"))
	}

	buf := pool.GetByteBuffer()
	defer pool.PutByteBuffer(buf)

	// Encode terminates each frame with a newline.
	err := json.NewEncoder(buf).Encode(frame)
	if err == nil {
		_, err = w.w.Write(buf.Bytes())
	}
	if err != nil {
		w.err = simerrors.StorageError("write recording", err)
		return w.err
	}
	w.frames++
	return nil
}

// OnFrame records a frame.
func (w *Writer) OnFrame(frame sim.Frame) {
	_ = w.Write(frame)
}

// Frames returns the number of frames written.
func (w *Writer) Frames() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Err returns the first write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close flushes and closes the recording.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return w.err
	}

	errs := []error{w.err, w.w.Flush(), w.enc.Close(), w.f.Close()}
	w.w, w.enc, w.f = nil, nil, nil
	for _, err := range errs {
		if err != nil {
			if w.err == nil {
				w.err = simerrors.StorageError("close recording", err)
			}
			return w.err
		}
	}
	return nil
}

// Reader iterates over the frames of a recording.
type Reader struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner
}

// Open opens a recording for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, simerrors.StorageError("open recording", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, simerrors.StorageError("open recording", err)
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	return &Reader{f: f, dec: dec, sc: sc}, nil
}

// Next returns the next frame, or io.EOF at the end of the recording.
func (r *Reader) Next() (sim.Frame, error) {
	if !r.sc.Scan() {
		if err := r.sc.Err(); err != nil {
			return sim.Frame{}, simerrors.StorageError("read recording", err)
		}
		return sim.Frame{}, io.EOF
	}
	var frame sim.Frame
	if err := json.Unmarshal(r.sc.Bytes(), &frame); err != nil {
		return sim.Frame{}, simerrors.StorageError("read recording", err)
	}
	return frame, nil
}

// Each calls fn for every remaining frame.
func (r *Reader) Each(fn func(sim.Frame) error) error {
	for {
		frame, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(frame); err != nil {
			return err
		}
	}
}

// Close releases the reader.
func (r *Reader) Close() error {
	r.dec.Close()
	return r.f.Close()
}
