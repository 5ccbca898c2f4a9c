package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// stdin is a variable to allow feeding input in tests
var stdin io.Reader = os.Stdin

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runRunCmd(args[2:], stdout, stderr)
	case "doctor":
		return runDoctorCmd(args[2:], stdout, stderr)
	case "version", "--version":
		_, _ = fmt.Fprintf(stdout, "effectshell %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%seffectshell %s%s\n", ColorBold+ColorBlue, version, ColorReset)
	fmt.Fprintf(w, "%sRuns a wallet core and carries out the effects it asks for.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  effectshell <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "COMMANDS")
	printCommand(w, "run", "Run a core, reading events from stdin (--config, --core, --drain)")
	printCommand(w, "doctor", "Check configuration and backends (--config, --json)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")

	printSection(w, "EVENTS")
	printCommand(w, "ready", "Start the wallet")
	printCommand(w, "select <id>", "Show one credential")
	printCommand(w, "delete <id>", "Delete a credential")
	printCommand(w, "scan", "Scan for an issuance offer")
	printCommand(w, "offer <text>", "Submit an issuance offer")
	printCommand(w, "increment", "Increment the counter")
	printCommand(w, "decrement", "Decrement the counter")
	printCommand(w, "watch", "Subscribe to counter updates")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-14s%s %s\n", ColorGreen, name, ColorReset, desc)
}
