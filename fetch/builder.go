package fetch

import (
	"github.com/sarchlab/fetchbuf/sim"
)

// defaultPlaceholderWord is an architectural no-op encoding. It is what the
// consumer sees while no real word can be produced, so that an invalid slot
// never leaks undefined bits.
const defaultPlaceholderWord = 0x00000013

// Builder can build fetch buffers.
type Builder struct {
	engine        sim.Engine
	freq          sim.Freq
	lineBytes     uint64
	laneBytes     uint64
	prefetchLanes uint64
	placeholder   uint32
	topBufSize    int
	bottomBufSize int
}

// MakeBuilder returns a builder with default parameters: 64-byte lines,
// 2-byte lanes, prefetch at the last quarter of the line.
func MakeBuilder() Builder {
	return Builder{
		freq:          1 * sim.GHz,
		lineBytes:     64,
		laneBytes:     2,
		placeholder:   defaultPlaceholderWord,
		topBufSize:    4,
		bottomBufSize: 4,
	}
}

// WithEngine sets the engine that drives the component.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the component.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithLineBytes sets the size of the lines fetched from the backing store.
func (b Builder) WithLineBytes(lineBytes uint64) Builder {
	b.lineBytes = lineBytes
	return b
}

// WithLaneBytes sets the sub-word granularity at which the consumer may
// address words.
func (b Builder) WithLaneBytes(laneBytes uint64) Builder {
	b.laneBytes = laneBytes
	return b
}

// WithPrefetchLanes sets the near-boundary threshold: the number of lanes
// from the end of the active line at which the successor line is prefetched.
func (b Builder) WithPrefetchLanes(prefetchLanes uint64) Builder {
	b.prefetchLanes = prefetchLanes
	return b
}

// WithPlaceholderWord sets the word emitted when no stored line can serve
// the request.
func (b Builder) WithPlaceholderWord(word uint32) Builder {
	b.placeholder = word
	return b
}

// WithTopBufSize sets the buffer size of the consumer-facing port.
func (b Builder) WithTopBufSize(size int) Builder {
	b.topBufSize = size
	return b
}

// WithBottomBufSize sets the buffer size of the backing-store-facing port.
func (b Builder) WithBottomBufSize(size int) Builder {
	b.bottomBufSize = size
	return b
}

// Build builds a new Comp.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		lineBytes:     b.lineBytes,
		laneBytes:     b.laneBytes,
		prefetchLanes: b.prefetchLanes,
		state:         stateAwaitingFirstLine,
		activeSlot:    SlotA,
	}

	if c.prefetchLanes == 0 {
		c.prefetchLanes = b.lineBytes / b.laneBytes / 4
	}

	c.store = NewLineStore(b.lineBytes)
	c.extractor = NewExtractor(c.store, b.laneBytes, b.placeholder)

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.topPort = sim.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	c.bottomPort = sim.NewPort(
		c, b.bottomBufSize, b.bottomBufSize, name+".BottomPort")
	c.AddPort("Bottom", c.bottomPort)

	m := &middleware{Comp: c}
	c.AddMiddleware(m)

	return c
}
