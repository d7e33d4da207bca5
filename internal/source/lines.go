package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/luki/o2ring/internal/feed"
	"github.com/luki/o2ring/internal/reading"
)

// Lines parses newline-delimited status lines from a reader, such as stdin
// or a capture file.
type Lines struct {
	Label  string
	Reader io.Reader
}

func (l *Lines) Name() string {
	if l.Label != "" {
		return l.Label
	}
	return "lines"
}

// maxLineLen bounds one status line. Longer lines are drained and reported
// as parse failures.
const maxLineLen = 4096

type rawLine struct {
	text      string
	truncated bool
}

func (l *Lines) Run(ctx context.Context, sink feed.Sink) error {
	sink.Deliver(feed.StateEvent(feed.StateConnected, fmt.Sprintf("Reading status lines from %s", l.Name()), nil))

	lines := make(chan rawLine)
	errc := make(chan error, 1)
	// The reader goroutine may stay blocked in Read after ctx is done; the
	// owner of l.Reader unblocks it by closing the reader.
	go func() {
		defer close(lines)
		br := bufio.NewReader(l.Reader)
		for {
			line, err := readLine(br, maxLineLen)
			if err != nil && line.text == "" && !line.truncated {
				if err != io.EOF {
					errc <- err
				}
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
			if err != nil {
				if err != io.EOF {
					errc <- err
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-errc:
				default:
				}
				if err != nil {
					sink.Deliver(feed.StateEvent(feed.StateError, "Input error", err))
					return fmt.Errorf("read %s: %w", l.Name(), err)
				}
				sink.Deliver(feed.StateEvent(feed.StateDisconnected, "End of input", nil))
				return nil
			}
			if line.truncated {
				deliverFailure(sink, line.text, time.Now())
				continue
			}
			deliverLine(sink, line.text, time.Now())
		}
	}
}

// readLine reads up to the next newline. At most limit bytes are kept; the
// rest of an oversized line is discarded and the result marked truncated.
func readLine(br *bufio.Reader, limit int) (rawLine, error) {
	var (
		buf       []byte
		truncated bool
	)
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return rawLine{text: string(buf), truncated: truncated}, err
		}
		if room := limit - len(buf); room > 0 {
			if len(chunk) > room {
				chunk, truncated = chunk[:room], true
			}
			buf = append(buf, chunk...)
		} else if len(chunk) > 0 {
			truncated = true
		}
		if !isPrefix {
			return rawLine{text: string(buf), truncated: truncated}, nil
		}
	}
}

// deliverLine parses one line and emits a reading or a parse failure.
// Blank lines are ignored.
func deliverLine(sink feed.Sink, line string, t time.Time) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	r, err := reading.ParseLine(line)
	if err != nil {
		deliverFailure(sink, line, t)
		return
	}
	ev := feed.ReadingEvent(r, t)
	ev.Line = line
	sink.Deliver(ev)
}

func deliverFailure(sink feed.Sink, line string, t time.Time) {
	log.WithField("line", truncate(line, 120)).Debug("skipping unrecognised status line")
	sink.Deliver(feed.Event{
		Time:   t,
		Line:   line,
		Err:    &reading.ParseFailure{Line: line},
		State:  feed.StateReceiving,
		Status: "No data: unrecognised status line",
	})
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
