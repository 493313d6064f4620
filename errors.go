package nativemod

import (
	"fmt"
	"strings"
)

// InstallPathError reports that the configured install path exists but is
// not a directory, so the artifact cannot be written there.
type InstallPathError struct {
	Path string
}

func (e *InstallPathError) Error() string {
	return fmt.Sprintf("cannot create or use install path %q: it already exists and is not a directory", e.Path)
}

// BuildError reports a failed external process during a build: either the
// toolchain flag-query command or the compiler itself exited non-zero, or
// could not be spawned at all.
//
// The full command line, exit status, and captured stdout/stderr are
// carried so callers can surface complete diagnostics. ExitStatus is -1
// when the process never ran (for example, the compiler binary is not on
// PATH); Stderr then holds the spawn error text.
type BuildError struct {
	Command    []string // argv of the failed invocation
	ExitStatus int      // process exit status, -1 if it never ran
	Stdout     string   // captured standard output
	Stderr     string   // captured standard error
}

func (e *BuildError) Error() string {
	report := fmt.Sprintf("execution of %s failed with status %d", strings.Join(e.Command, " "), e.ExitStatus)
	detail := fmt.Sprintf("stdout:\n%s\nstderr:\n%s", indent(e.Stdout, 1), indent(e.Stderr, 1))
	return report + "\n" + indent(detail, 1)
}

// LoadError reports that a built artifact could not be loaded as a native
// module, or that a requested entry point could not be resolved in one.
type LoadError struct {
	Path   string // artifact path (or loaded module path for symbol errors)
	Symbol string // entry point name, empty for whole-module load failures
	Err    error
}

func (e *LoadError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("resolving entry point %q in module %s: %v", e.Symbol, e.Path, e.Err)
	}
	return fmt.Sprintf("loading module %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
