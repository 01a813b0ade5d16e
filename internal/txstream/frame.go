package txstream

import (
	"bufio"
	"io"
	"strings"
)

// maxFrameLineSize bounds a single line of the event stream.
const maxFrameLineSize = 1 << 20

// frameReader splits a server-sent events body into data payloads.
//
// Standard framing is honored: "data:" lines accumulate until a blank line
// dispatches them, lines starting with ":" are comments, and "event", "id"
// and "retry" fields are ignored. Any other line is taken as a complete
// payload on its own so plain newline-delimited bodies work too, even when
// the payload itself contains a colon.
// A frame left incomplete at EOF is discarded.
type frameReader struct {
	scanner *bufio.Scanner
	data    []string
}

func newFrameReader(r io.Reader) *frameReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxFrameLineSize)

	return &frameReader{scanner: scanner}
}

// next returns the payload of the next dispatched frame. It returns io.EOF
// when the body ends cleanly.
func (f *frameReader) next() (string, error) {
	for f.scanner.Scan() {
		line := strings.TrimSuffix(f.scanner.Text(), "\r")

		if line == "" {
			if len(f.data) == 0 {
				continue
			}

			payload := strings.Join(f.data, "\n")
			f.data = f.data[:0]
			return payload, nil
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		switch field {
		case "data":
			f.data = append(f.data, strings.TrimPrefix(value, " "))
		case "event", "id", "retry":
		default:
			return line, nil
		}
	}

	if err := f.scanner.Err(); err != nil {
		return "", err
	}

	return "", io.EOF
}

// activityReader reports every successful read so an idle watchdog can be
// pushed back while bytes keep flowing.
type activityReader struct {
	r     io.Reader
	touch func()
}

func (a activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.touch()
	}

	return n, err
}
