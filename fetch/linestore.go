package fetch

import "log"

// A Slot identifies one of the two permanent line storage slots.
type Slot int

// The two slots.
const (
	SlotA Slot = iota
	SlotB
)

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	}

	return "unknown"
}

// Other returns the slot that is not s.
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}

	return SlotA
}

// A Line is one fixed-size aligned block fetched from the backing store,
// together with its provenance.
type Line struct {
	Data        []byte
	BaseAddress uint64
	Valid       bool
}

// A LineStore holds exactly two lines. It is inert storage: the fetch
// controller is the only writer, the word extractor only reads.
type LineStore struct {
	lineBytes uint64
	lines     [2]Line
}

// NewLineStore creates a line store for lines of the given size. The two
// slots are allocated once and reused for the whole lifetime of the store.
func NewLineStore(lineBytes uint64) *LineStore {
	if lineBytes == 0 || lineBytes&(lineBytes-1) != 0 {
		log.Panicf("line size %d is not a power of two", lineBytes)
	}

	s := &LineStore{lineBytes: lineBytes}
	for i := range s.lines {
		s.lines[i].Data = make([]byte, lineBytes)
	}

	return s
}

// LineBytes returns the size of each line.
func (s *LineStore) LineBytes() uint64 {
	return s.lineBytes
}

// BaseOf returns the line-aligned base address of an address.
func (s *LineStore) BaseOf(addr uint64) uint64 {
	return addr &^ (s.lineBytes - 1)
}

// Write overwrites a slot unconditionally. The caller guarantees that no
// consumer still depends on the old content of the slot.
func (s *LineStore) Write(slot Slot, baseAddress uint64, data []byte) {
	if baseAddress%s.lineBytes != 0 {
		log.Panicf("base address %#x is not line aligned", baseAddress)
	}

	if uint64(len(data)) != s.lineBytes {
		log.Panicf("line data has %d bytes, want %d", len(data), s.lineBytes)
	}

	line := &s.lines[slot]
	copy(line.Data, data)
	line.BaseAddress = baseAddress
	line.Valid = true
}

// Line returns the content of a slot.
func (s *LineStore) Line(slot Slot) Line {
	return s.lines[slot]
}

// InvalidateAll marks both slots invalid. Used on reset and flush.
func (s *LineStore) InvalidateAll() {
	for i := range s.lines {
		s.lines[i].Valid = false
	}
}

// Holds tells if a slot is valid and holds the line at the given base
// address.
func (s *LineStore) Holds(slot Slot, baseAddress uint64) bool {
	line := s.lines[slot]
	return line.Valid && line.BaseAddress == baseAddress
}

// Lookup returns the slot whose line contains the given address. Slot A is
// checked before slot B, so if both slots spuriously hold the same line, A
// wins deterministically.
func (s *LineStore) Lookup(addr uint64) (Slot, bool) {
	base := s.BaseOf(addr)

	if s.Holds(SlotA, base) {
		return SlotA, true
	}

	if s.Holds(SlotB, base) {
		return SlotB, true
	}

	return SlotA, false
}
