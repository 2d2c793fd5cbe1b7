package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code:
// 0 on success, 1 on runtime failure, 2 on usage or input errors.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "diff":
		return runDiff(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "reconcile":
		return runReconcile(args[1:])
	case "process", "run-once":
		return runProcess(args[1:])
	case "records":
		return runRecords(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "outage-watch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  outage-watch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  diff       Print posts in the new snapshot that are absent from the old one")
	fmt.Fprintln(os.Stderr, "  validate   Validate extracted record JSON files")
	fmt.Fprintln(os.Stderr, "  reconcile  Store one extracted record unless it duplicates an existing one")
	fmt.Fprintln(os.Stderr, "  process    Diff two snapshots, extract new posts and reconcile them")
	fmt.Fprintln(os.Stderr, "  run-once   Alias for process")
	fmt.Fprintln(os.Stderr, "  records    List stored interruptions or show one by id")
	fmt.Fprintln(os.Stderr, "  serve      Start Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"outage-watch <command> -h\" for command-specific flags.")
}
