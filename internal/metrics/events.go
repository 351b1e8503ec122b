package metrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Event is one scalar record of the event log.
//
// Wire format: a sequence of length-delimited protobuf messages with
//
//	1: step      (varint)
//	2: wall_time (double, seconds since the Unix epoch)
//	3: tag       (string)
//	4: value     (double)
//	5: text      (string, optional)
type Event struct {
	Step     int64
	WallTime float64
	Tag      string
	Value    float64
	Text     string
}

const (
	fieldStep     protowire.Number = 1
	fieldWallTime protowire.Number = 2
	fieldTag      protowire.Number = 3
	fieldValue    protowire.Number = 4
	fieldText     protowire.Number = 5
)

// Event tags.
const (
	TagRun          = "run"
	TagLoss         = "loss/total"
	TagContent      = "loss/content"
	TagStyle        = "loss/style"
	TagLR           = "optim/lr"
	TagStepSeconds  = "time/step_seconds"
	TagEpochLoss    = "epoch/mean_loss"
	TagEpochSkipped = "epoch/skipped"
	TagSkip         = "skip"
)

// EventWriter appends events to a writer. Write errors are sticky and
// surface from Err and Close.
type EventWriter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	c   io.Closer
	now func() time.Time
	buf []byte
	err error
}

// NewEventWriter creates an event log over w and records the run id. If w
// is an io.Closer, Close closes it.
func NewEventWriter(w io.Writer, runID string) *EventWriter {
	ew := &EventWriter{w: bufio.NewWriter(w), now: time.Now}
	if c, ok := w.(io.Closer); ok {
		ew.c = c
	}
	ew.Write(Event{Tag: TagRun, Text: runID})
	return ew
}

// Write appends one event, stamping WallTime if it is zero.
func (ew *EventWriter) Write(e Event) {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.err != nil {
		return
	}
	if e.WallTime == 0 {
		e.WallTime = float64(ew.now().UnixNano()) / 1e9
	}
	ew.buf = protowire.AppendBytes(ew.buf[:0], marshalEvent(nil, e))
	_, ew.err = ew.w.Write(ew.buf)
}

// Step records the losses, learning rate and duration of a step.
func (ew *EventWriter) Step(m StepMetrics) {
	for _, e := range []Event{
		{Step: m.Step, Tag: TagLoss, Value: float64(m.Loss)},
		{Step: m.Step, Tag: TagContent, Value: float64(m.Content)},
		{Step: m.Step, Tag: TagStyle, Value: float64(m.Style)},
		{Step: m.Step, Tag: TagLR, Value: float64(m.LR)},
		{Step: m.Step, Tag: TagStepSeconds, Value: m.Duration.Seconds()},
	} {
		ew.Write(e)
	}
}

// Epoch records the epoch mean loss and skip count.
func (ew *EventWriter) Epoch(m EpochMetrics) {
	ew.Write(Event{Step: int64(m.Epoch), Tag: TagEpochLoss, Value: m.MeanLoss})
	ew.Write(Event{Step: int64(m.Epoch), Tag: TagEpochSkipped, Value: float64(m.Skipped)})
}

// Warn records a skipped step.
func (ew *EventWriter) Warn(step int64, reason string) {
	ew.Write(Event{Step: step, Tag: TagSkip, Value: 1, Text: reason})
}

// Flush writes buffered events through.
func (ew *EventWriter) Flush() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	if ew.err == nil {
		ew.err = ew.w.Flush()
	}
	return ew.err
}

// Err returns the first write error.
func (ew *EventWriter) Err() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.err
}

// Close flushes and closes the underlying writer.
func (ew *EventWriter) Close() error {
	err := ew.Flush()
	if ew.c != nil {
		err = errors.Join(err, ew.c.Close())
	}
	return err
}

func marshalEvent(b []byte, e Event) []byte {
	b = protowire.AppendTag(b, fieldStep, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Step))
	b = protowire.AppendTag(b, fieldWallTime, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.WallTime))
	b = protowire.AppendTag(b, fieldTag, protowire.BytesType)
	b = protowire.AppendString(b, e.Tag)
	b = protowire.AppendTag(b, fieldValue, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(e.Value))
	if e.Text != "" {
		b = protowire.AppendTag(b, fieldText, protowire.BytesType)
		b = protowire.AppendString(b, e.Text)
	}
	return b
}

func unmarshalEvent(b []byte) (Event, error) {
	var e Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldStep && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			e.Step = int64(v)
			b = b[n:]
		case (num == fieldWallTime || num == fieldValue) && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			if num == fieldWallTime {
				e.WallTime = math.Float64frombits(v)
			} else {
				e.Value = math.Float64frombits(v)
			}
			b = b[n:]
		case (num == fieldTag || num == fieldText) && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			if num == fieldTag {
				e.Tag = v
			} else {
				e.Text = v
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return e, nil
}

// ReadEvents decodes every event in r.
func ReadEvents(r io.Reader) ([]Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var events []Event
	for len(data) > 0 {
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return events, fmt.Errorf("metrics: event %d: %w", len(events), protowire.ParseError(n))
		}
		e, err := unmarshalEvent(msg)
		if err != nil {
			return events, fmt.Errorf("metrics: event %d: %w", len(events), err)
		}
		events = append(events, e)
		data = data[n:]
	}
	return events, nil
}
