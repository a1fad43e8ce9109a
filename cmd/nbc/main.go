// NBC CLI - loads .nbc module files and runs them on the stack engine
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"

	"github.com/noodle-lang/nbc/manifest"
	"github.com/noodle-lang/nbc/pkg/bytecode"
	"github.com/noodle-lang/nbc/wire"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("nbc")

func main() {
	entry := flag.String("e", "", "Entry function (default from nbc.toml, else 'main')")
	trace := flag.Bool("trace", false, "Print each instruction as it executes")
	verbosity := flag.Int("v", 0, "Log verbosity (0=errors, 1=info, 2=debug)")
	maxFrames := flag.Int("max-frames", 0, "Call frame limit (0 = default)")
	emitCBOR := flag.Bool("cbor", false, "Emit CBOR report/summary to stdout instead of text")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: nbc [options] <command> [module.nbc]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  run     Execute a module's entry function\n")
		fmt.Fprintf(os.Stderr, "  disasm  Print a human-readable listing of a module\n")
		fmt.Fprintf(os.Stderr, "  info    Print module metadata\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  nbc run app.nbc              # Run 'main' in app.nbc\n")
		fmt.Fprintf(os.Stderr, "  nbc run -e start app.nbc     # Run 'start' instead\n")
		fmt.Fprintf(os.Stderr, "  nbc run                      # Use module/entry from nbc.toml\n")
		fmt.Fprintf(os.Stderr, "  nbc disasm app.nbc           # Disassemble\n")
		fmt.Fprintf(os.Stderr, "  nbc info -cbor app.nbc       # Module summary as CBOR\n")
	}
	flag.Parse()

	commonlog.Configure(*verbosity, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]
	args = args[1:]

	mf, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if mf != nil {
		log.Debugf("loaded manifest from %s", mf.Dir)
	}

	modulePath := ""
	if len(args) > 0 {
		modulePath = args[0]
	} else if mf != nil && mf.Module.Path != "" {
		modulePath = mf.ModulePath()
	}
	if modulePath == "" {
		fmt.Fprintln(os.Stderr, "Error: no module file given and no nbc.toml found")
		os.Exit(2)
	}

	mod, err := loadModuleFile(modulePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch command {
	case "run":
		os.Exit(runModule(mod, mf, *entry, *trace, *maxFrames, *emitCBOR))
	case "disasm":
		fmt.Print(mod.Disassemble())
	case "info":
		if err := printInfo(mod, *emitCBOR); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(2)
	}
}

func loadModuleFile(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mod, err := bytecode.LoadModule(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Debugf("loaded %s: %d functions, %d strings", path, len(mod.Functions), len(mod.Strings))
	return mod, nil
}

func runModule(mod *bytecode.Module, mf *manifest.Manifest, entry string, trace bool, maxFrames int, emitCBOR bool) int {
	if entry == "" {
		entry = "main"
		if mf != nil && mf.Module.Entry != "" {
			entry = mf.Module.Entry
		}
	}

	vm := bytecode.NewVM()
	if mf != nil {
		vm.Trace = mf.VM.Trace
		if mf.VM.MaxFrames > 0 {
			vm.SetMaxFrames(mf.VM.MaxFrames)
		}
	}
	if trace {
		vm.Trace = true
	}
	if maxFrames > 0 {
		vm.SetMaxFrames(maxFrames)
	}

	var args []bytecode.Value
	if mf != nil {
		for _, a := range mf.Module.Args {
			args = append(args, bytecode.NewString(a))
		}
	}

	result, err := vm.Execute(mod, entry, args)

	if emitCBOR {
		data, merr := wire.MarshalExecutionReport(wire.NewExecutionReport(vm))
		if merr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", merr)
			return 1
		}
		os.Stdout.Write(data)
		if err != nil {
			return 1
		}
		return 0
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Fault: %v\n", err)
		log.Debugf("stack: %s", vm.StackDump())
		log.Debugf("locals: %s", vm.LocalsDump())
		return 1
	}

	log.Infof("executed %d instructions, max stack depth %d",
		vm.InstructionsExecuted(), vm.MaxStackDepth())

	if !result.IsNull() {
		fmt.Println(result.AsString())
	}
	return 0
}

func printInfo(mod *bytecode.Module, emitCBOR bool) error {
	s := wire.Summarize(mod)

	if emitCBOR {
		data, err := wire.MarshalModuleSummary(s)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	fmt.Printf("NBC module v%d\n", s.Version)
	fmt.Printf("strings:   %d\n", s.Strings)
	fmt.Printf("functions: %d\n", len(s.Functions))
	for _, f := range s.Functions {
		fmt.Printf("  %-24s %d instructions\n", f.Name, f.Instructions)
	}
	return nil
}
