package gradio

import (
	"bufio"
	"io"
	"strings"
)

// event is one server-sent event.
type event struct {
	Name string
	Data string
}

// eventReader parses a text/event-stream body. Only the "event" and "data"
// fields are used by Gradio; ids and retry hints are ignored.
type eventReader struct {
	scanner *bufio.Scanner
}

func newEventReader(r io.Reader) *eventReader {
	s := bufio.NewScanner(r)
	// Result payloads can carry long strings or inline base64.
	s.Buffer(make([]byte, 0, 64*1024), 16<<20)
	return &eventReader{scanner: s}
}

// Next returns the next complete event, or io.EOF when the stream ends.
func (r *eventReader) Next() (event, error) {
	var (
		evt     event
		data    []string
		pending bool
	)
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")
		if line == "" {
			if pending {
				evt.Data = strings.Join(data, "\n")
				return evt, nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			evt.Name = value
			pending = true
		case "data":
			data = append(data, value)
			pending = true
		}
	}
	if err := r.scanner.Err(); err != nil {
		return event{}, err
	}
	if pending {
		evt.Data = strings.Join(data, "\n")
		return evt, nil
	}
	return event{}, io.EOF
}
