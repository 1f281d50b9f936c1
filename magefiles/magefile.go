//go:build mage

// Copyright (c) 2026 Petar Djukic. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main provides build targets for the spyglass project using Mage.
//
// Usage:
//
//	mage build          Compile spyglass binary to bin/
//	mage test:all       Run all tests
//	mage test:race      Run all tests with the race detector
//	mage test:cover     Run all tests and write coverage.out
//	mage scenarios      Run every behavior file under testdata/ through the CLI
//	mage lint           Run golangci-lint
//	mage clean          Remove build artifacts
//	mage install        Install spyglass to GOPATH/bin
//	mage stats          Print Go LOC per package
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binGo      = "go"
	binLint    = "golangci-lint"
	binaryName = "spyglass"
	binaryDir  = "bin"
	cmdDir     = "./cmd/spyglass"
)

// Build compiles the spyglass binary to bin/.
func Build() error {
	if err := os.MkdirAll(binaryDir, 0o755); err != nil {
		return err
	}
	return sh.RunV(binGo, "build", "-v", "-o", filepath.Join(binaryDir, binaryName), cmdDir)
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV(binLint, "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if err := os.RemoveAll(binaryDir); err != nil {
		return err
	}
	if err := os.RemoveAll("coverage.out"); err != nil {
		return err
	}
	return sh.RunV(binGo, "clean")
}

// Install builds and copies the binary to GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	gopath, err := sh.Output(binGo, "env", "GOPATH")
	if err != nil {
		return err
	}
	src := filepath.Join(binaryDir, binaryName)
	dst := filepath.Join(gopath, "bin", binaryName)
	return sh.Copy(dst, src)
}

// Scenarios builds the CLI and runs every behavior file found in a
// testdata directory.
func Scenarios() error {
	mg.Deps(Build)
	var files []string
	err := filepath.WalkDir(".", func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && (d.Name() == "_examples" || d.Name() == ".git" || d.Name() == binaryDir) {
			return filepath.SkipDir
		}
		if !d.IsDir() && filepath.Base(filepath.Dir(path)) == "testdata" && filepath.Ext(path) == ".yaml" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	bin := filepath.Join(binaryDir, binaryName)
	for _, f := range files {
		fmt.Println("==>", f)
		if err := sh.RunV(bin, "run", f); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}
