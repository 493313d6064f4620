//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Build compiles the library and the demo binary.
func Build() error {
	return sh.RunV("go", "build", "./...")
}

// Test runs the test suite. Tests needing a C compiler skip themselves
// when none is on PATH.
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Lint runs go vet over the module.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Demo runs the demo binary against the bundled C module with verbose
// output.
func Demo() error {
	mg.Deps(Build)
	return sh.RunV("go", "run", "./cmd/nativemod", "--verbose")
}
