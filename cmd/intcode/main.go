// intcode: Intcode virtual machine runner and JSON-RPC service.
//
// Run a program file once, step through it interactively, print a
// disassembly, or serve the program library and sessions over JSON-RPC.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fortiblox/intcode/internal/config"
	"github.com/fortiblox/intcode/pkg/checkpoint"
	"github.com/fortiblox/intcode/pkg/executor"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/loader"
	"github.com/fortiblox/intcode/pkg/programstore"
	"github.com/fortiblox/intcode/pkg/rpc"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags
var (
	configPath  = flag.String("config", "", "Path to intcode.toml")
	programPath = flag.String("program", "", "Program file to run (.zst files are decompressed)")
	inputList   = flag.String("input", "", "Comma-separated input values")
	asciiMode   = flag.Bool("ascii", false, "Render output as text and read input lines from stdin")
	maxCycles   = flag.Uint64("max-cycles", 0, "Cycle budget per run (0 = config default)")
	maxMemory   = flag.Int64("max-memory", 0, "Memory cap in cells per machine (0 = config default)")
	stepMode    = flag.Bool("step", false, "Print each output as it is produced")
	disasm      = flag.Bool("disasm", false, "Print a disassembly instead of running")
	saveAs      = flag.String("save", "", "Store the program in the library under this name")
	serve       = flag.Bool("serve", false, "Serve the JSON-RPC API")
	rpcAddr     = flag.String("rpc-addr", "", "RPC server listen address (overrides config)")
	dataDir     = flag.String("data-dir", "", "Data directory for programs and checkpoints (overrides config)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("intcode %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	// Setup logging
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	if *serve {
		if err := runServer(ctx, cfg); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	if *programPath == "" {
		fmt.Fprintln(os.Stderr, "usage: intcode -program FILE [flags] | intcode -serve [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	prog, err := loader.Load(*programPath)
	if err != nil {
		log.Fatalf("Failed to load program: %v", err)
	}

	if *saveAs != "" {
		if err := saveProgram(cfg, *saveAs, prog); err != nil {
			log.Fatalf("Failed to store program: %v", err)
		}
	}

	if *disasm {
		fmt.Print(intcode.Listing(prog.Tape))
		return
	}

	inputs, err := parseInputs(*inputList)
	if err != nil {
		log.Fatalf("Invalid -input: %v", err)
	}

	exec := executor.New(cfg.ExecutorConfig(), nil, nil)
	switch {
	case *asciiMode || *stepMode:
		err = runInteractive(ctx, exec, prog.Tape, inputs, *asciiMode, os.Stdin, os.Stdout)
	default:
		err = runOnce(ctx, exec, prog.Tape, inputs, os.Stdout)
	}
	if err != nil {
		log.Fatalf("Execution failed: %v", err)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *rpcAddr != "" {
		cfg.RPC.Addr = *rpcAddr
	}
	if *maxCycles > 0 {
		cfg.VM.MaxCycles = *maxCycles
	}
	if *maxMemory > 0 {
		cfg.VM.MaxMemory = *maxMemory
	}
	return cfg, nil
}

// parseInputs parses a comma-separated value list.
func parseInputs(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return intcode.Parse(s)
}

// runOnce runs to halt and prints all outputs.
func runOnce(ctx context.Context, exec *executor.Executor, tape, inputs []int64, out io.Writer) error {
	result, err := exec.Execute(ctx, tape, inputs)
	if result != nil && len(result.Outputs) > 0 {
		fmt.Fprintln(out, intcode.Format(result.Outputs))
	}
	if err != nil {
		return err
	}
	log.Printf("Halted after %d cycles", result.Cycles)
	return nil
}

// runInteractive drives a session one output at a time. In ASCII mode
// outputs are rendered as text and each input wait reads a line from in.
func runInteractive(ctx context.Context, exec *executor.Executor, tape, inputs []int64, ascii bool, in io.Reader, out io.Writer) error {
	sess, err := exec.Open(tape)
	if err != nil {
		return err
	}
	defer exec.Close(sess.ID)
	sess.Push(inputs...)

	reader := bufio.NewReader(in)
	for {
		res, err := sess.Resume(ctx)
		if err != nil {
			return err
		}

		switch res.Kind {
		case intcode.ResultOutput:
			sess.Drain()
			if !ascii {
				fmt.Fprintln(out, res.Value)
			} else if intcode.IsASCII(res.Value) {
				fmt.Fprintf(out, "%c", byte(res.Value))
			} else {
				fmt.Fprintf(out, "\n[%d]\n", res.Value)
			}

		case intcode.ResultAwaitingInput:
			line, err := reader.ReadString('\n')
			if errors.Is(err, io.EOF) && line == "" {
				return fmt.Errorf("%w: stdin closed", intcode.ErrEmptyInput)
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if ascii {
				sess.Push(intcode.EncodeASCII(strings.TrimRight(line, "\r\n") + "\n")...)
				continue
			}
			values, err := parseInputs(line)
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return fmt.Errorf("%w: blank input line", intcode.ErrEmptyInput)
			}
			sess.Push(values...)

		case intcode.ResultHalted:
			status := sess.Status()
			log.Printf("Halted after %d cycles", status.Cycles)
			return nil
		}
	}
}

// saveProgram stores prog in the program library.
func saveProgram(cfg *config.Config, name string, prog *loader.Program) error {
	store, err := programstore.Open(cfg.ProgramStoreConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.Put(name, prog.Tape)
	if err != nil {
		return err
	}
	log.Printf("Stored %s as %q (%s)", prog.Path, name, id)
	return nil
}

// runServer serves the JSON-RPC API until ctx is cancelled.
func runServer(ctx context.Context, cfg *config.Config) error {
	log.Printf("Starting intcode %s", Version)
	log.Printf("Data directory: %s", cfg.DataDir)

	programs, err := programstore.Open(cfg.ProgramStoreConfig())
	if err != nil {
		return fmt.Errorf("open program store: %w", err)
	}
	defer programs.Close()

	checkpoints, err := checkpoint.Open(cfg.CheckpointConfig())
	if err != nil {
		return fmt.Errorf("open checkpoint store: %w", err)
	}
	defer checkpoints.Close()

	if stats, err := programs.Stats(); err == nil {
		log.Printf("[STORE] %d programs under %d names, %d checkpoints",
			stats.ProgramCount, stats.NameCount, checkpoints.Count())
	}

	exec := executor.New(cfg.ExecutorConfig(), programs, checkpoints)
	server := rpc.New(cfg.RPCConfig(), exec, programs)

	log.Printf("[RPC] Listening on %s", cfg.RPC.Addr)
	if err := server.Start(ctx); err != nil {
		return err
	}
	log.Println("intcode stopped")
	return nil
}
