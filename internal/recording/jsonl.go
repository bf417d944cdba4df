package recording

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

const maxLineSize = 4 << 20

// JSONLWriter writes one event per line. It is safe for concurrent use, and a
// nil *JSONLWriter ignores everything.
type JSONLWriter struct {
	mu     sync.Mutex
	closer io.Closer
	enc    *json.Encoder
	err    error
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	jw := &JSONLWriter{enc: json.NewEncoder(w)}
	if c, ok := w.(io.Closer); ok {
		jw.closer = c
	}
	return jw
}

// CreateJSONL appends to the file at path, creating it if needed.
func CreateJSONL(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("recording: open %s: %w", path, err)
	}
	return NewJSONLWriter(f), nil
}

// Write encodes e. It has the shape of a tracker subscriber; the first
// failure is kept and reported by Err.
func (w *JSONLWriter) Write(e tracker.Event) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.err != nil {
		return
	}
	if err := w.enc.Encode(e); err != nil {
		w.err = fmt.Errorf("recording: encode event %d: %w", e.ID, err)
	}
}

func (w *JSONLWriter) Err() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.err
}

func (w *JSONLWriter) Close() error {
	if w == nil || w.closer == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.closer.Close(); err != nil {
		return fmt.Errorf("recording: close: %w", err)
	}
	return nil
}

// WriteJSONL writes events to w, one per line.
func WriteJSONL(w io.Writer, events []tracker.Event) error {
	jw := NewJSONLWriter(w)
	for _, e := range events {
		jw.Write(e)
	}
	return jw.Err()
}

// ReadJSONL decodes one event per line. Blank lines are skipped. The result
// is checked to be a valid log.
func ReadJSONL(r io.Reader) ([]tracker.Event, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var events []tracker.Event
	for line := 1; scanner.Scan(); line++ {
		e, ok, err := decodeLine(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("recording: line %d: %w", line, err)
		}
		if ok {
			events = append(events, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("recording: read: %w", err)
	}

	if err := tracker.Validate(events); err != nil {
		return nil, fmt.Errorf("recording: read: %w", err)
	}
	return events, nil
}

func decodeLine(line []byte) (tracker.Event, bool, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return tracker.Event{}, false, nil
	}
	var e tracker.Event
	if err := json.Unmarshal(line, &e); err != nil {
		return tracker.Event{}, false, err
	}
	return e, true, nil
}

// TailJSONL calls fn for every event in the file at path, then keeps watching
// it and calls fn for each line appended until ctx is done.
func TailJSONL(ctx context.Context, path string, fn func(tracker.Event)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("recording: open %s: %w", path, err)
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("recording: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("recording: watch %s: %w", path, err)
	}

	lines := &lineReader{r: bufio.NewReader(f)}
	drain := func() error {
		if err := lines.drain(fn); err != nil {
			return fmt.Errorf("recording: tail %s: %w", path, err)
		}
		return nil
	}

	if err := drain(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write == 0 {
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("recording: watch %s: %w", path, err)
		}
	}
}

// lineReader decodes complete lines and holds back a trailing partial one
// until the rest of it is written.
type lineReader struct {
	r       *bufio.Reader
	partial []byte
}

// drain calls fn for every complete line available. Reaching the end of the
// input is not an error.
func (l *lineReader) drain(fn func(tracker.Event)) error {
	for {
		chunk, err := l.r.ReadBytes('\n')
		l.partial = append(l.partial, chunk...)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		e, ok, err := decodeLine(l.partial)
		l.partial = l.partial[:0]
		if err != nil {
			return err
		}
		if ok {
			fn(e)
		}
	}
}
