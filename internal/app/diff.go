package app

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"horse.fit/outage-watch/internal/posts"
)

func runDiff(args []string) int {
	fs := flag.NewFlagSet("diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	oldFile := fs.String("old", "", "Path to the previous snapshot JSON")
	newFile := fs.String("new", "", "Path to the latest snapshot JSON")
	logLevel := fs.String("log-level", "warn", "Log level for skipped-item warnings")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	oldRaw, err := loadJSONInput("", *oldFile, "old snapshot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}
	newRaw, err := loadJSONInput("", *newFile, "new snapshot")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
		return 2
	}

	fresh, err := posts.FindNewPostsJSON(oldRaw, newRaw, stderrLogger(*logLevel))
	if err != nil {
		var malformed *posts.MalformedInputError
		if errors.As(err, &malformed) {
			fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
			return 2
		}
		fmt.Fprintf(os.Stderr, "Diff failed: %v\n", err)
		return 1
	}
	if fresh == nil {
		fresh = []posts.Post{}
	}

	if err := printJSON(fresh); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write output: %v\n", err)
		return 1
	}
	return 0
}
