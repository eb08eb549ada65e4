// Package transcript records the lines exchanged with a sandboxed process
// as a zstd-compressed log.
package transcript

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/turingarena/turingarena-sub002/pkg/errors"

	"github.com/klauspost/compress/zstd"
)

// Direction of a recorded line, seen from the driver.
type Direction byte

const (
	Downward Direction = '>'
	Upward   Direction = '<'
)

// Entry is one recorded line.
type Entry struct {
	Direction Direction
	Line      string
}

// Recorder implements sandbox.Observer. Writes after the first failure are
// dropped and the failure is returned by Close.
type Recorder struct {
	mu     sync.Mutex
	enc    *zstd.Encoder
	w      *bufio.Writer
	file   io.Closer
	err    error
	closed bool
}

// NewRecorder compresses entries into w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "create zstd writer")
	}
	return &Recorder{enc: enc, w: bufio.NewWriter(enc)}, nil
}

// Create records into a new file at path.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InternalServerError, "create transcript %s", path)
	}
	r, err := NewRecorder(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.file = f
	return r, nil
}

func (r *Recorder) Downward(line string) { r.record(Downward, line) }

func (r *Recorder) Upward(line string) { r.record(Upward, line) }

func (r *Recorder) record(dir Direction, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil || r.closed {
		return
	}
	r.w.WriteByte(byte(dir))
	r.w.WriteByte(' ')
	r.w.WriteString(line)
	if err := r.w.WriteByte('\n'); err != nil {
		r.err = err
	}
}

// Close flushes the compressed stream and closes the file, if any.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.err
	}
	r.closed = true
	if err := r.w.Flush(); err != nil && r.err == nil {
		r.err = err
	}
	if err := r.enc.Close(); err != nil && r.err == nil {
		r.err = err
	}
	if r.file != nil {
		if err := r.file.Close(); err != nil && r.err == nil {
			r.err = err
		}
	}
	if r.err != nil {
		return errors.Wrapf(r.err, errors.InternalServerError, "write transcript")
	}
	return nil
}

// Read decodes a transcript written by a Recorder.
func Read(src io.Reader) ([]Entry, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, errors.Wrapf(err, errors.InvalidFormat, "create zstd reader")
	}
	defer dec.Close()

	var out []Entry
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		text := scanner.Text()
		if len(text) < 2 || (text[0] != byte(Downward) && text[0] != byte(Upward)) {
			return nil, errors.Newf(errors.InvalidFormat, "invalid transcript line %q", text)
		}
		out = append(out, Entry{Direction: Direction(text[0]), Line: strings.TrimPrefix(text[1:], " ")})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, errors.InvalidFormat, "read transcript")
	}
	return out, nil
}

// ReadFile decodes the transcript stored at path.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.NotFound, "open transcript %s", path)
	}
	defer f.Close()
	return Read(f)
}
