//go:build mage

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main contains Mage build targets for arxiv-notifier developer tooling.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// projectDirs lists the working directories the notifier writes to.
var projectDirs = []string{
	"data",
	"logs",
	".secrets",
}

const (
	binDir  = "bin"
	binName = "arxiv-notifier"
	cmdPkg  = "./cmd/arxiv-notifier"
)

// Init creates the data, log and secrets directories and a sample .env.example.
func Init() error {
	for _, dir := range projectDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
		fmt.Println("  ", dir)
	}
	fmt.Println("Project directories initialized.")

	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "generate-env", "--output", ".env.example")
}

// Build compiles the CLI binary into bin/, stamping the version from git.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", binDir, err)
	}
	out := filepath.Join(binDir, binName)
	ldflags := "-X main.version=" + gitVersion()
	if err := sh.RunV("go", "build", "-ldflags", ldflags, "-o", out, cmdPkg); err != nil {
		return fmt.Errorf("go build: %w", err)
	}
	fmt.Printf("Built %s\n", out)
	return nil
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Once builds the CLI and runs a single notification cycle.
func Once() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "once")
}

// Stats builds the CLI and prints ledger statistics.
func Stats() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "db", "stats")
}

// gitVersion returns the current git describe output, or "dev" outside a
// repository.
func gitVersion() string {
	v, err := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	if err != nil || strings.TrimSpace(v) == "" {
		return "dev"
	}
	return strings.TrimSpace(v)
}
