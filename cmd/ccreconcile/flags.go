package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func validateArgsPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("argument file is required")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve argument file: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("argument file does not exist: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("argument path %s is a directory", abs)
	}
	return nil
}

func validateFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown output format %q (expected table or json)", format)
}
