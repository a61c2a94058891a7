package driver

import (
	"github.com/sarchlab/fetchbuf/sim"
)

// Builder can build word stream drivers.
type Builder struct {
	engine       sim.Engine
	freq         sim.Freq
	wordBytes    uint64
	numWords     int
	startAddress uint64
	redirects    []Redirect
	bufferDst    sim.RemotePort
}

// MakeBuilder returns a Builder with default parameters.
func MakeBuilder() Builder {
	return Builder{
		freq:      1 * sim.GHz,
		wordBytes: 4,
		numWords:  16,
	}
}

// WithEngine sets the event-driven simulation engine to use.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the driver.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithWordBytes sets the number of bytes the fetch cursor advances per word.
func (b Builder) WithWordBytes(n uint64) Builder {
	b.wordBytes = n
	return b
}

// WithNumWords sets the number of words to fetch before stopping.
func (b Builder) WithNumWords(n int) Builder {
	b.numWords = n
	return b
}

// WithStartAddress sets the address of the first word to fetch.
func (b Builder) WithStartAddress(addr uint64) Builder {
	b.startAddress = addr
	return b
}

// WithRedirect appends a scripted control-flow redirection. Redirects must
// be added in stream order.
func (b Builder) WithRedirect(afterWords int, to uint64) Builder {
	b.redirects = append(b.redirects, Redirect{AfterWords: afterWords, To: to})
	return b
}

// WithBufferDst sets the remote port of the fetch buffer to stream from.
func (b Builder) WithBufferDst(dst sim.RemotePort) Builder {
	b.bufferDst = dst
	return b
}

// Build creates a driver with the given name.
func (b Builder) Build(name string) *Comp {
	c := &Comp{
		wordBytes:      b.wordBytes,
		numWords:       b.numWords,
		startAddress:   b.startAddress,
		currentAddress: b.startAddress,
		redirects:      b.redirects,
		bufferDst:      b.bufferDst,
	}

	c.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, c)

	c.fetchPort = sim.NewPort(c, 1, 1, name+".Fetch")
	c.AddPort("Fetch", c.fetchPort)

	m := &middleware{Comp: c}
	c.AddMiddleware(m)

	return c
}

// FetchPort returns the port the driver fetches through.
func (c *Comp) FetchPort() sim.Port {
	return c.fetchPort
}
