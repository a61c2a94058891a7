package fetch

import "log"

// An Extractor assembles words from the lines held in a LineStore. A word is
// two lanes wide. When the requested lane is the last lane of a line, the
// high lane is spliced from lane 0 of the other slot, which then must hold
// the successor line.
//
// The extractor is purely combinational: it holds no state of its own, and
// its output for a given cycle is a function of the line store content and
// the requested address only.
type Extractor struct {
	store       *LineStore
	laneBytes   uint64
	placeholder uint32
}

// NewExtractor creates an extractor that reads from the given store with the
// given lane granularity. Addresses whose line is not present produce the
// placeholder word instead of undefined bytes.
func NewExtractor(
	store *LineStore,
	laneBytes uint64,
	placeholder uint32,
) *Extractor {
	if laneBytes != 1 && laneBytes != 2 {
		log.Panicf("lane size %d is not supported, must be 1 or 2", laneBytes)
	}

	if store.LineBytes()%laneBytes != 0 {
		log.Panicf("lane size %d does not divide line size %d",
			laneBytes, store.LineBytes())
	}

	return &Extractor{
		store:       store,
		laneBytes:   laneBytes,
		placeholder: placeholder,
	}
}

// WordBytes returns the number of bytes in an extracted word.
func (e *Extractor) WordBytes() uint64 {
	return 2 * e.laneBytes
}

// Placeholder returns the word emitted when no stored line covers a request.
func (e *Extractor) Placeholder() uint32 {
	return e.placeholder
}

// Extract returns the word at addr, reading the low lane from the line in
// the active slot. The complete flag is false when the word had to fall back
// to placeholder bytes, either because the active slot does not cover addr
// (cold start, mid-flush) or because the high lane spills into a successor
// line that has not landed yet.
func (e *Extractor) Extract(active Slot, addr uint64) (uint32, bool) {
	lineBytes := e.store.LineBytes()
	line := e.store.Line(active)
	base := e.store.BaseOf(addr)

	if !line.Valid || line.BaseAddress != base {
		return e.placeholder, false
	}

	offset := (addr - base) &^ (e.laneBytes - 1)
	lo := line.Data[offset : offset+e.laneBytes]

	if offset+e.laneBytes < lineBytes {
		hi := line.Data[offset+e.laneBytes : offset+2*e.laneBytes]
		return e.word(lo, hi), true
	}

	// Spill: the high lane is lane 0 of the successor line.
	other := e.store.Line(active.Other())
	if other.Valid && other.BaseAddress == base+lineBytes {
		return e.word(lo, other.Data[:e.laneBytes]), true
	}

	return e.word(lo, e.placeholderHighLane()), false
}

// ExtractAny is like Extract but searches both slots for the line that
// contains addr. It backs the next-word output, where the predicted address
// may fall in either slot.
func (e *Extractor) ExtractAny(addr uint64) (uint32, bool) {
	slot, ok := e.store.Lookup(addr)
	if !ok {
		return e.placeholder, false
	}

	return e.Extract(slot, addr)
}

// word assembles a little-endian word from a low and a high lane.
func (e *Extractor) word(lo, hi []byte) uint32 {
	w := uint32(0)
	shift := uint(0)

	for _, b := range lo {
		w |= uint32(b) << shift
		shift += 8
	}

	for _, b := range hi {
		w |= uint32(b) << shift
		shift += 8
	}

	return w
}

// placeholderHighLane returns the high-lane bytes of the placeholder word.
func (e *Extractor) placeholderHighLane() []byte {
	hi := make([]byte, e.laneBytes)

	for i := uint64(0); i < e.laneBytes; i++ {
		hi[i] = byte(e.placeholder >> (8 * (e.laneBytes + i)))
	}

	return hi
}
