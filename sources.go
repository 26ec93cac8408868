package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/muesli/gitcha"
)

var markdownExtensions = []string{
	"*.md", "*.mdown", "*.mkdn", "*.mkd", "*.markdown",
}

// ignorePatterns are skipped when walking a directory unless --all is set.
var ignorePatterns = []string{
	"node_modules",
	".*",
}

// resolveInputs returns the documents named by arg. A directory yields
// every markdown file beneath it, sorted; a file or a path that does not
// exist is returned as is so the converter reports it.
func resolveInputs(arg string, all bool) ([]string, error) {
	info, err := os.Stat(arg)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return []string{arg}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to stat %s: %w", arg, err)
	}

	dir, err := filepath.Abs(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to get absolute path: %w", err)
	}

	// Switch between FindFiles and FindAllFiles to bypass .gitignore rules
	var ch chan gitcha.SearchResult
	if all {
		ch, err = gitcha.FindAllFilesExcept(dir, markdownExtensions, nil)
	} else {
		ch, err = gitcha.FindFilesExcept(dir, markdownExtensions, ignorePatterns)
	}
	if err != nil {
		return nil, fmt.Errorf("error finding markdown files: %w", err)
	}

	var paths []string
	for res := range ch {
		if res.Info != nil && res.Info.IsDir() {
			continue
		}
		paths = append(paths, res.Path)
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no markdown files found in %s", arg)
	}
	log.Debug("Found markdown files", "dir", dir, "count", len(paths))
	return paths, nil
}
