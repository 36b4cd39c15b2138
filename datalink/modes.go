// Package datalink slices Mode-S frames out of the bursts produced by the
// bladeRF ADS-B FPGA image and renders them in the AVR ASCII format that
// readsb and dump1090 accept on their raw input port.
package datalink

import (
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// Burst geometry. The FPGA image writes one candidate frame per slot and the
// downstream decoders depend on this exact alignment.
const (
	BurstSize     = 4096
	SlotWidth     = 16
	FrameOffset   = 2
	ShortFrameLen = 7
	LongFrameLen  = 14

	validBit = 0x01
	longBit  = 0x80
)

var ErrMalformedRecord = errors.New("malformed record")

// Frame is a short (56 bit) or long (112 bit) Mode-S message.
type Frame []byte

func (f Frame) Long() bool {
	return len(f) == LongFrameLen
}

// Record is a frame rendered as "*<hex>;\n".
type Record string

// Len is the number of frame bytes carried by the record.
func (r Record) Len() int {
	return (len(strings.TrimSuffix(string(r), "\n")) - 2) / 2
}

// slotFrame classifies a single slot. Only bytes inside the slot are read.
func slotFrame(slot []byte) (Frame, bool) {
	if slot[0]&validBit != validBit {
		return nil, false
	}
	n := ShortFrameLen
	if slot[FrameOffset]&longBit == longBit {
		n = LongFrameLen
	}
	return Frame(slot[FrameOffset : FrameOffset+n]), true
}

// Scan visits the len(buf)/SlotWidth slots of buf in order and yields the slot
// offset and frame for every valid slot. Frames alias buf and are only good
// until buf is overwritten.
func Scan(buf []byte) iter.Seq2[int, Frame] {
	return func(yield func(int, Frame) bool) {
		for off := 0; off+SlotWidth <= len(buf); off += SlotWidth {
			f, ok := slotFrame(buf[off : off+SlotWidth])
			if !ok {
				continue
			}
			if !yield(off, f) {
				return
			}
		}
	}
}

// Extract renders every frame found in buf. The records own their bytes, so
// buf may be reused as soon as the sequence has been consumed.
func Extract(buf []byte) iter.Seq[Record] {
	return func(yield func(Record) bool) {
		for _, f := range Scan(buf) {
			if !yield(Render(f)) {
				return
			}
		}
	}
}

func Render(f Frame) Record {
	b := make([]byte, 0, 2*len(f)+3)
	b = append(b, '*')
	b = hex.AppendEncode(b, f)
	b = append(b, ';', '\n')
	return Record(b)
}

// ParseRecord is the inverse of Render. The trailing newline is optional.
func ParseRecord(line string) (Frame, error) {
	body := strings.TrimRight(line, "\r\n")
	if len(body) < 2 || body[0] != '*' || body[len(body)-1] != ';' {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRecord, line)
	}
	f, err := hex.DecodeString(body[1 : len(body)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(f) != ShortFrameLen && len(f) != LongFrameLen {
		return nil, fmt.Errorf("%w: %d byte frame", ErrMalformedRecord, len(f))
	}
	return Frame(f), nil
}
