package blockmem

import (
	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/sim"
)

// Builder can build block memories.
type Builder struct {
	engine      sim.Engine
	freq        sim.Freq
	latency     int
	lineBytes   uint64
	capacity    uint64
	storage     *mem.Storage
	topBufSize  int
	faultRanges []FaultRange
}

// MakeBuilder returns a builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:       1 * sim.GHz,
		latency:    100,
		lineBytes:  64,
		capacity:   4 * mem.GB,
		topBufSize: 16,
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

// WithLatency sets the number of cycles between a request and its response.
func (b Builder) WithLatency(latency int) Builder {
	b.latency = latency
	return b
}

// WithLineBytes sets the size of the lines that the memory serves.
func (b Builder) WithLineBytes(lineBytes uint64) Builder {
	b.lineBytes = lineBytes
	return b
}

// WithNewStorage lets the builder create a storage of the given capacity.
func (b Builder) WithNewStorage(capacity uint64) Builder {
	b.capacity = capacity
	return b
}

// WithStorage sets the storage that keeps the memory content.
func (b Builder) WithStorage(storage *mem.Storage) Builder {
	b.storage = storage
	return b
}

// WithTopBufSize sets the size of the incoming buffer of the top port.
func (b Builder) WithTopBufSize(topBufSize int) Builder {
	b.topBufSize = topBufSize
	return b
}

// WithFaultRange adds an address range that responds with faults.
func (b Builder) WithFaultRange(
	low, high uint64,
	kind mem.FaultKind,
) Builder {
	b.faultRanges = append(b.faultRanges, FaultRange{
		Low:  low,
		High: high,
		Kind: kind,
	})
	return b
}

// Build builds a new Comp.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		Latency:     b.latency,
		LineBytes:   b.lineBytes,
		faultRanges: b.faultRanges,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	if b.storage == nil {
		c.Storage = mem.NewStorage(b.capacity)
	} else {
		c.Storage = b.storage
	}

	c.topPort = sim.NewPort(c, b.topBufSize, b.topBufSize, name+".TopPort")
	c.AddPort("Top", c.topPort)

	m := &middleware{Comp: c}
	c.AddMiddleware(m)

	return c
}
