package seatmap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// SeatRef is the widget's own handle for a seat circle.
type SeatRef struct {
	SeatID int64
	Handle string
}

// Widget is the interactive seat map. It owns seat visuals; the adapter
// only asks it to toggle seats and to stop their loading indicators.
type Widget interface {
	Mount(svg string) error
	Locate(seatID int64) (SeatRef, bool)
	ToggleSeat(ref SeatRef, tariffID int64)
	AcknowledgeLoaded(ref SeatRef, reserved bool)
	Away()
}

type Op string

const (
	OpClick  Op = "click"
	OpLoaded Op = "loaded"
	OpAway   Op = "away"
)

// Command is one widget call the browser replays on its chart.
type Command struct {
	Op       Op     `json:"op"`
	SeatID   int64  `json:"seat_id,omitempty"`
	Handle   string `json:"handle,omitempty"`
	TariffID int64  `json:"tariff_id,omitempty"`
	Reserved *bool  `json:"reserved,omitempty"`
}

var ErrNoSeats = errors.New("schema has no seats")

// Outbox is the server side of a chart drawn in the browser. Widget calls
// are queued as commands and handed to the browser with the next response.
type Outbox struct {
	mu    sync.Mutex
	seats map[int64]string
	queue []Command
}

func NewOutbox() *Outbox {
	return &Outbox{seats: map[int64]string{}}
}

// Mount indexes the seat circles of an SVG schema by their sbt:id
// attribute. A schema that does not parse or holds no seats is rejected.
func (o *Outbox) Mount(svg string) error {
	const op = "seatmap.Outbox.Mount"

	seats, err := scanSeats(svg)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	o.mu.Lock()
	o.seats = seats
	o.queue = nil
	o.mu.Unlock()

	return nil
}

func (o *Outbox) Locate(seatID int64) (SeatRef, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	h, ok := o.seats[seatID]
	if !ok {
		return SeatRef{}, false
	}
	return SeatRef{SeatID: seatID, Handle: h}, true
}

func (o *Outbox) ToggleSeat(ref SeatRef, tariffID int64) {
	o.push(Command{Op: OpClick, SeatID: ref.SeatID, Handle: ref.Handle, TariffID: tariffID})
}

func (o *Outbox) AcknowledgeLoaded(ref SeatRef, reserved bool) {
	o.push(Command{Op: OpLoaded, SeatID: ref.SeatID, Handle: ref.Handle, Reserved: &reserved})
}

func (o *Outbox) Away() {
	o.push(Command{Op: OpAway})
}

// Drain returns the queued commands in call order and empties the queue.
func (o *Outbox) Drain() []Command {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.queue
	o.queue = nil
	return out
}

func (o *Outbox) push(c Command) {
	o.mu.Lock()
	o.queue = append(o.queue, c)
	o.mu.Unlock()
}

func scanSeats(svg string) (map[int64]string, error) {
	dec := xml.NewDecoder(bytes.NewReader([]byte(svg)))
	dec.Strict = false

	seats := map[int64]string{}
	rootSeen := false

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !rootSeen {
			if se.Name.Local != "svg" {
				return nil, fmt.Errorf("root element is <%s>, want <svg>", se.Name.Local)
			}
			rootSeen = true
			continue
		}
		if se.Name.Local != "circle" {
			continue
		}

		for _, a := range se.Attr {
			if a.Name.Local != "id" || a.Name.Space == "" {
				continue
			}
			id, err := strconv.ParseInt(strings.TrimSpace(a.Value), 10, 64)
			if err != nil {
				break
			}
			seats[id] = a.Value
		}
	}

	if len(seats) == 0 {
		return nil, ErrNoSeats
	}

	return seats, nil
}
