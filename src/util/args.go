package util

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Options holds the command line configuration for a single compiler
// invocation. This compiler always targets the host triple, so Options
// carries none of the cross-compilation target selection this project's
// lineage offers for its native backends.
type Options struct {
	Src     string // Path to source file. Empty means read stdin.
	Out     string // Path to the output artifact; meaning depends on EmitAsm/EmitObj.
	Verbose bool   // Print each compiler stage's intermediate output to stdout.
	EmitAsm bool   // -S: stop after writing textual LLVM IR.
	EmitObj bool   // -c: stop after writing a host-native object file.
	Run     bool   // -run: link and then execute the resulting binary.
}

// ---------------------
// ----- Constants -----
// ---------------------

const appVersion = "lispc 1.0"

// ---------------------
// ----- functions -----
// ---------------------

// ParseArgs parses command line arguments.
func ParseArgs() (Options, error) {
	opt := Options{}
	args := os.Args[1:]
	for i1 := 0; i1 < len(args); i1++ {
		switch args[i1] {
		case "-h", "--h", "-help", "--help":
			// Help and usage.
			printHelp()
			os.Exit(0)
		case "-o":
			if i1+1 >= len(args) {
				return opt, fmt.Errorf("got flag %s but no argument", args[i1])
			}
			if strings.HasPrefix(args[i1+1], "-") {
				return opt, fmt.Errorf("expected path after %s, got new flag %s", args[i1], args[i1+1])
			}
			opt.Out = args[i1+1]
			i1++
		case "-S":
			// Stop after textual LLVM IR.
			opt.EmitAsm = true
		case "-c":
			// Stop after object emission.
			opt.EmitObj = true
		case "-run":
			// Link and execute.
			opt.Run = true
		case "-vb":
			// Verbose mode.
			opt.Verbose = true
		case "-v", "--v", "-version", "--version":
			// Application version.
			fmt.Println(appVersion)
			os.Exit(0)
		default:
			if strings.HasPrefix(args[i1], "-") {
				return opt, fmt.Errorf("unexpected flag: %s", args[i1])
			}
			opt.Src = args[i1]
		}
	}
	if opt.EmitAsm && opt.EmitObj {
		return opt, fmt.Errorf("-S and -c are mutually exclusive")
	}
	if (opt.EmitAsm || opt.EmitObj) && opt.Run {
		return opt, fmt.Errorf("-run requires a linked executable, not just -S or -c output")
	}
	return opt, nil
}

// printHelp prints a helpful usage message to stdout.
func printHelp() {
	w := tabwriter.NewWriter(os.Stdout, 6, 1, 1, 0, 0)
	_, _ = fmt.Fprintln(w, "-h, -help\tPrints this help message and exits the application.")
	_, _ = fmt.Fprintln(w, "-o\tPath to the output file. Defaults to the source file's base name, with .o or .ll under -c/-S (a when reading stdin).")
	_, _ = fmt.Fprintln(w, "-S\tStop after emitting textual LLVM IR.")
	_, _ = fmt.Fprintln(w, "-c\tStop after emitting a host-native object file.")
	_, _ = fmt.Fprintln(w, "-run\tLink and immediately execute the resulting binary.")
	_, _ = fmt.Fprintln(w, "-v, -version\tPrints application version and exits the application.")
	_, _ = fmt.Fprintln(w, "-vb\tVerbose mode: print each compiler stage's output to stdout.")
	_ = w.Flush()
}
