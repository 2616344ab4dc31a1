package wire

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Encoder writes events as SSE frames: an event line, a data line, and a
// blank line, flushed after every frame so clients see deltas immediately.
type Encoder struct {
	w       io.Writer
	flusher http.Flusher
}

// NewEncoder wraps w. If w implements http.Flusher (or flusher is given),
// every frame is flushed as it is written.
func NewEncoder(w io.Writer) *Encoder {
	enc := &Encoder{w: w}
	if f, ok := w.(http.Flusher); ok {
		enc.flusher = f
	}
	return enc
}

// WriteEvent writes one event frame.
func (e *Encoder) WriteEvent(event Event) error {
	data, err := event.MarshalData()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
	return nil
}

// Decoder incrementally parses SSE frames from arbitrary byte chunks. Chunk
// boundaries carry no meaning: an incomplete line is buffered until the rest
// arrives, and a pending event tag survives across chunks until its data
// line shows up.
type Decoder struct {
	buf        bytes.Buffer
	pendingTag string
	hasPending bool
	failed     error
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Feed consumes the next chunk and returns the events completed by it.
// Once Feed reports an error the decoder is poisoned and every later call
// returns the same error.
func (d *Decoder) Feed(chunk []byte) ([]Event, error) {
	if d.failed != nil {
		return nil, d.failed
	}
	d.buf.Write(chunk)

	var events []Event
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			return events, nil
		}
		line := string(raw[:idx])
		d.buf.Next(idx + 1)
		line = strings.TrimSuffix(line, "\r")

		event, ok, err := d.consumeLine(line)
		if err != nil {
			d.failed = err
			return events, err
		}
		if ok {
			events = append(events, event)
		}
	}
}

func (d *Decoder) consumeLine(line string) (Event, bool, error) {
	switch {
	case line == "":
		// Frame separator.
		return Event{}, false, nil
	case strings.HasPrefix(line, ":"):
		// SSE comment.
		return Event{}, false, nil
	case strings.HasPrefix(line, "event:"):
		if d.hasPending {
			return Event{}, false, fmt.Errorf("wire: event tag %q arrived while %q still awaited data", strings.TrimSpace(line[len("event:"):]), d.pendingTag)
		}
		d.pendingTag = strings.TrimSpace(line[len("event:"):])
		d.hasPending = true
		return Event{}, false, nil
	case strings.HasPrefix(line, "data:"):
		if !d.hasPending {
			return Event{}, false, fmt.Errorf("wire: data line without a preceding event tag")
		}
		tag := d.pendingTag
		d.pendingTag = ""
		d.hasPending = false
		data := strings.TrimPrefix(line[len("data:"):], " ")
		event, err := decodeEvent(tag, []byte(data))
		if err != nil {
			return Event{}, false, err
		}
		return event, true, nil
	default:
		// Other SSE fields (id, retry) are not part of this protocol; skip.
		return Event{}, false, nil
	}
}
