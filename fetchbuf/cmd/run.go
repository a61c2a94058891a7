package cmd

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/fetchbuf/driver"
	"github.com/sarchlab/fetchbuf/fetch"
	"github.com/sarchlab/fetchbuf/mem"
	"github.com/sarchlab/fetchbuf/mem/blockmem"
	"github.com/sarchlab/fetchbuf/sim"
	"github.com/sarchlab/fetchbuf/sim/directconnection"
	"github.com/sarchlab/fetchbuf/tracing"
)

var runFlags struct {
	numWords     int
	startAddress string
	lineBytes    uint64
	laneBytes    uint64
	latency      int
	redirects    []string
	faultRanges  []string
	traceFile    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a word stream through the fetch buffer.",
	Long: `Run streams words through the fetch buffer and prints each ` +
		`fetched word together with the stall statistics. Redirects are ` +
		`given as AFTER:ADDRESS pairs, fault ranges as LOW:HIGH:KIND ` +
		`triples where KIND is access or bus.`,
	Run: func(cmd *cobra.Command, args []string) {
		runSimulation()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntVar(&runFlags.numWords,
		"num-words", 32, "number of words to fetch")
	runCmd.Flags().StringVar(&runFlags.startAddress,
		"start-address", "0x100", "address of the first word")
	runCmd.Flags().Uint64Var(&runFlags.lineBytes,
		"line-bytes", 64, "size of a backing store line")
	runCmd.Flags().Uint64Var(&runFlags.laneBytes,
		"lane-bytes", 2, "fetch lane granularity, 1 or 2")
	runCmd.Flags().IntVar(&runFlags.latency,
		"latency", 20, "backing store latency in cycles")
	runCmd.Flags().StringArrayVar(&runFlags.redirects,
		"redirect", nil, "redirect the stream, as AFTER:ADDRESS")
	runCmd.Flags().StringArrayVar(&runFlags.faultRanges,
		"fault-range", nil, "unreadable address range, as LOW:HIGH:KIND")
	runCmd.Flags().StringVar(&runFlags.traceFile,
		"trace", "", "record task traces into the given SQLite file")
}

func runSimulation() {
	engine := sim.NewSerialEngine()

	memComp := buildMemory(engine)
	bufComp := buildFetchBuffer(engine, memComp)
	drvComp := buildDriver(engine, bufComp)

	conn := directconnection.MakeBuilder().
		WithEngine(engine).
		WithFreq(1 * sim.GHz).
		Build("Conn")
	conn.PlugIn(drvComp.FetchPort(), 1)
	conn.PlugIn(bufComp.TopPort(), 1)
	conn.PlugIn(bufComp.GetPortByName("Bottom"), 1)
	conn.PlugIn(memComp.TopPort(), 1)

	if runFlags.traceFile != "" {
		tracer := tracing.NewSQLiteTracer(engine, runFlags.traceFile)
		tracer.Init()
		tracing.CollectTrace(bufComp, tracer)
		tracing.CollectTrace(memComp, tracer)
	}

	drvComp.TickLater()

	if err := engine.Run(); err != nil {
		log.Fatalf("simulation failed: %v", err)
	}

	report(engine, drvComp)
	atexit.Exit(0)
}

func buildMemory(engine sim.Engine) *blockmem.Comp {
	builder := blockmem.MakeBuilder().
		WithEngine(engine).
		WithNewStorage(16 * mem.MB).
		WithLineBytes(runFlags.lineBytes).
		WithLatency(runFlags.latency)

	for _, s := range runFlags.faultRanges {
		low, high, kind := parseFaultRange(s)
		builder = builder.WithFaultRange(low, high, kind)
	}

	memComp := builder.Build("Mem")

	program := make([]byte, 1<<20)
	for i := range program {
		program[i] = byte(3*i + 1)
	}
	if err := memComp.Storage.Write(0, program); err != nil {
		log.Fatalf("cannot initialize memory: %v", err)
	}

	return memComp
}

func buildFetchBuffer(engine sim.Engine, memComp *blockmem.Comp) *fetch.Comp {
	bufComp := fetch.MakeBuilder().
		WithEngine(engine).
		WithLineBytes(runFlags.lineBytes).
		WithLaneBytes(runFlags.laneBytes).
		Build("FetchBuf")
	bufComp.SetBackingStore(memComp.TopPort().AsRemote())

	return bufComp
}

func buildDriver(engine sim.Engine, bufComp *fetch.Comp) *driver.Comp {
	builder := driver.MakeBuilder().
		WithEngine(engine).
		WithWordBytes(2 * runFlags.laneBytes).
		WithNumWords(runFlags.numWords).
		WithStartAddress(parseAddress(runFlags.startAddress)).
		WithBufferDst(bufComp.TopPort().AsRemote())

	for _, s := range runFlags.redirects {
		after, to := parseRedirect(s)
		builder = builder.WithRedirect(after, to)
	}

	return builder.Build("Driver")
}

func parseAddress(s string) uint64 {
	addr, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		log.Fatalf("cannot parse address %q: %v", s, err)
	}

	return addr
}

func parseRedirect(s string) (int, uint64) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		log.Fatalf("redirect %q is not of the form AFTER:ADDRESS", s)
	}

	after, err := strconv.Atoi(parts[0])
	if err != nil {
		log.Fatalf("cannot parse redirect count %q: %v", parts[0], err)
	}

	return after, parseAddress(parts[1])
}

func parseFaultRange(s string) (uint64, uint64, mem.FaultKind) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		log.Fatalf("fault range %q is not of the form LOW:HIGH:KIND", s)
	}

	var kind mem.FaultKind
	switch parts[2] {
	case "access":
		kind = mem.FaultAccess
	case "bus":
		kind = mem.FaultBus
	default:
		log.Fatalf("unknown fault kind %q", parts[2])
	}

	return parseAddress(parts[0]), parseAddress(parts[1]), kind
}

func report(engine sim.Engine, drvComp *driver.Comp) {
	for i, word := range drvComp.Words() {
		fmt.Printf("%4d: %#08x\n", i, word)
	}

	fmt.Printf("words fetched:  %d\n", len(drvComp.Words()))
	fmt.Printf("stall cycles:   %d\n", drvComp.StallCycles())
	fmt.Printf("simulated time: %.9fs\n", float64(engine.CurrentTime()))

	if drvComp.Fault() != mem.FaultNone {
		fmt.Printf("stream stopped by a %s fault\n", drvComp.Fault())
	}
}
