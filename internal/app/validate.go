package app

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"horse.fit/outage-watch/internal/extraction"
)

type validateSummary struct {
	Scanned   int
	Related   int
	Unrelated int
	Invalid   int
}

func (s validateSummary) valid() int {
	return s.Related + s.Unrelated
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	dir := fs.String("dir", "testdata/records", "Directory containing extracted record .json files")
	recursive := fs.Bool("recursive", true, "Recursively scan subdirectories")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	root := strings.TrimSpace(*dir)
	files, err := collectJSONFiles(root, *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 2
	}

	summary := validateSummary{}
	for _, path := range files {
		summary.Scanned++

		rec, err := validateRecordFile(path)
		if err != nil {
			summary.Invalid++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}
		if rec.IsPowerInterruptionRelated {
			summary.Related++
		} else {
			summary.Unrelated++
		}
	}

	fmt.Printf(
		"validate scanned=%d valid=%d related=%d unrelated=%d invalid=%d dir=%s recursive=%t\n",
		summary.Scanned,
		summary.valid(),
		summary.Related,
		summary.Unrelated,
		summary.Invalid,
		root,
		*recursive,
	)

	if summary.Scanned == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", root)
		return 1
	}
	if summary.Invalid > 0 {
		return 1
	}
	return 0
}

func validateRecordFile(path string) (extraction.Record, error) {
	raw, err := loadJSONInput("", path, "record")
	if err != nil {
		return extraction.Record{}, err
	}
	return extraction.Decode(raw)
}

// collectJSONFiles lists visible .json files under root in lexical order.
// Hidden files and hidden subdirectories are skipped.
func collectJSONFiles(root string, recursive bool) ([]string, error) {
	cleanRoot := strings.TrimSpace(root)
	if cleanRoot == "" {
		return nil, fmt.Errorf("directory path is empty")
	}

	info, err := os.Stat(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cleanRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cleanRoot)
	}

	var files []string
	err = filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		hidden := strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if path == cleanRoot {
				return nil
			}
			if hidden || !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !hidden && strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", cleanRoot, err)
	}

	sort.Strings(files)
	return files, nil
}
