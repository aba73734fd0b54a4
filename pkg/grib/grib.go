// Package grib locates and decodes GRIB edition 2 messages.
//
// Only what the renderer needs is supported: regular latitude/longitude
// grids (template 3.0), simple packing (5.0) and PNG packing (5.41), and
// an optional bitmap. A decoded [Field] is a flat slice of [geo.Sample] in
// storage order, rows of constant latitude one after another.
package grib

import (
	"bytes"
	"encoding/binary"

	"github.com/AdenKoperczak/grib2pf/pkg/errors"
)

var (
	magic = []byte("GRIB")
	trail = []byte("7777")
)

// indicatorLen is the size of section 0 in an edition 2 message.
const indicatorLen = 16

// Message is one GRIB message sliced out of a payload.
type Message struct {
	Offset     int // byte offset of "GRIB" within the payload
	Edition    int
	Discipline int
	Data       []byte
}

// Find returns every well-formed message in payload, in order. Bytes
// between messages and truncated messages are skipped.
func Find(payload []byte) []Message {
	var msgs []Message
	pos := 0
	for {
		m, next, ok := scan(payload, pos)
		if !ok {
			return msgs
		}
		if m.Data != nil {
			msgs = append(msgs, m)
		}
		pos = next
	}
}

// At returns the first edition 2 message starting at or after byte offset.
func At(payload []byte, offset int) (Message, error) {
	if offset < 0 || offset > len(payload) {
		return Message{}, errors.New(errors.ErrCodeInvalidInput, "offset %d outside payload of %d bytes", offset, len(payload))
	}
	pos := offset
	for {
		m, next, ok := scan(payload, pos)
		if !ok {
			return Message{}, errors.New(errors.ErrCodeNotFound, "no GRIB2 message at or after offset %d", offset)
		}
		if m.Data != nil && m.Edition == 2 {
			return m, nil
		}
		pos = next
	}
}

// scan looks for the next indicator at or after pos. ok is false when no
// indicator remains. A candidate that does not frame a complete message
// yields a Message with nil Data and next just past the bad indicator.
func scan(payload []byte, pos int) (m Message, next int, ok bool) {
	i := bytes.Index(payload[pos:], magic)
	if i < 0 {
		return Message{}, len(payload), false
	}
	start := pos + i
	skip := start + len(magic)
	rest := payload[start:]

	if len(rest) < 8 {
		return Message{}, skip, true
	}
	edition := int(rest[7])

	var length uint64
	discipline := 0
	switch edition {
	case 2:
		if len(rest) < indicatorLen {
			return Message{}, skip, true
		}
		length = binary.BigEndian.Uint64(rest[8:16])
		discipline = int(rest[6])
	case 1:
		length = uint64(rest[4])<<16 | uint64(rest[5])<<8 | uint64(rest[6])
	default:
		return Message{}, skip, true
	}

	if length < indicatorLen || length > uint64(len(rest)) {
		return Message{}, skip, true
	}
	data := rest[:length]
	if !bytes.Equal(data[len(data)-4:], trail) {
		return Message{}, skip, true
	}
	return Message{
		Offset:     start,
		Edition:    edition,
		Discipline: discipline,
		Data:       data,
	}, start + int(length), true
}
