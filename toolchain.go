package nativemod

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Toolchain describes how a single source file is compiled into a native
// loadable object.
//
// A Toolchain is a value: copy it and adjust fields to customize a build.
// The zero value is not usable; start from one of the presets (CToolchain,
// CPPToolchain, PythonCToolchain) or fill in every field.
//
// # Flag Query
//
// FlagsCommand, when non-empty, names an external command whose standard
// output is parsed as a whitespace-separated flag list and appended to the
// compiler invocation. This is how embedding-runtime flags are discovered
// (the canonical example is python3-config --cflags). A non-zero exit from
// the query is a hard build failure.
type Toolchain struct {
	// Name is the human-readable toolchain name used in messages.
	Name string

	// Compiler is the compiler binary. Resolved through CompilerEnv and
	// platform defaults by the presets; used verbatim otherwise.
	Compiler string

	// SharedFlags are the flags that make the compiler emit a shared,
	// dynamically loadable object.
	SharedFlags []string

	// FlagsCommand is the optional toolchain-query command (argv form)
	// whose stdout supplies additional compiler flags.
	FlagsCommand []string

	// SourceExt is the source file suffix, including the dot.
	SourceExt string

	// ArtifactExt is the produced loadable-object suffix, including the
	// dot. Defaults per platform via defaultArtifactExt.
	ArtifactExt string
}

// ToolRequirement describes an external tool a toolchain depends on.
type ToolRequirement struct {
	// Name is the primary tool binary name (e.g., "gcc").
	Name string

	// Alternatives are alternative binaries that satisfy the requirement.
	Alternatives []string

	// Purpose is a human-readable description of why the tool is needed.
	Purpose string
}

// CToolchain returns the default toolchain: compile a .c file into a
// shared object with the system C compiler.
//
// The compiler is taken from the CC environment variable when set, falling
// back to gcc.
func CToolchain() Toolchain {
	return Toolchain{
		Name:        "C",
		Compiler:    compilerFromEnv("CC", "gcc"),
		SharedFlags: []string{"--shared", "-fPIC"},
		SourceExt:   ".c",
		ArtifactExt: defaultArtifactExt(),
	}
}

// CPPToolchain returns a toolchain compiling a .cpp file into a shared
// object with the system C++ compiler (CXX environment override, g++
// default).
func CPPToolchain() Toolchain {
	return Toolchain{
		Name:        "C++",
		Compiler:    compilerFromEnv("CXX", "g++"),
		SharedFlags: []string{"--shared", "-fPIC"},
		SourceExt:   ".cpp",
		ArtifactExt: defaultArtifactExt(),
	}
}

// PythonCToolchain returns a toolchain for Python C extension modules:
// the C compiler plus flags discovered from python3-config --cflags, so
// the produced object is loadable by the embedding interpreter.
func PythonCToolchain() Toolchain {
	tc := CToolchain()
	tc.Name = "Python C extension"
	tc.FlagsCommand = []string{"python3-config", "--cflags"}
	return tc
}

// RequiredTools returns the external tools this toolchain needs.
func (tc Toolchain) RequiredTools() []ToolRequirement {
	tools := []ToolRequirement{
		{
			Name:         tc.Compiler,
			Alternatives: []string{"gcc", "clang", "cc"},
			Purpose:      fmt.Sprintf("%s compiler for native modules", tc.Name),
		},
	}
	if len(tc.FlagsCommand) > 0 {
		tools = append(tools, ToolRequirement{
			Name:    tc.FlagsCommand[0],
			Purpose: "toolchain flag query",
		})
	}
	return tools
}

// CheckTools verifies that the toolchain's external tools are on PATH.
//
// This is a fail-fast convenience for callers that want a friendly error
// before spawning anything; Build itself reports a missing compiler as a
// BuildError.
func (tc Toolchain) CheckTools() error {
	var missing []string

	for _, req := range tc.RequiredTools() {
		found := toolAvailable(req.Name)
		for _, alt := range req.Alternatives {
			if found {
				break
			}
			found = toolAvailable(alt)
		}
		if !found {
			if req.Purpose != "" {
				missing = append(missing, fmt.Sprintf("%s (%s)", req.Name, req.Purpose))
			} else {
				missing = append(missing, req.Name)
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}
	if len(missing) == 1 {
		return fmt.Errorf("%s not found in PATH", missing[0])
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// queryFlags runs the toolchain's FlagsCommand and parses its stdout as a
// whitespace-separated flag list. Returns nil flags when no query command
// is configured.
func (tc Toolchain) queryFlags(ctx context.Context, env map[string]string) ([]string, *commandResult, error) {
	if len(tc.FlagsCommand) == 0 {
		return nil, nil, nil
	}

	res, err := runCommand(ctx, tc.FlagsCommand, env)
	if err != nil {
		return nil, res, err
	}
	return strings.Fields(res.Stdout), res, nil
}

// compileCommand constructs the compiler argv for building sourcePath into
// artifactPath with the given extra flags.
func (tc Toolchain) compileCommand(sourcePath, artifactPath string, extraFlags []string) []string {
	argv := []string{tc.Compiler, sourcePath, "-o", artifactPath}
	argv = append(argv, tc.SharedFlags...)
	argv = append(argv, extraFlags...)
	return argv
}

// Registry selects a toolchain for a source file by its suffix.
//
// Toolchains are checked in registration order; the first whose SourceExt
// matches wins. Not safe for concurrent registration; register everything
// before use.
type Registry struct {
	toolchains []Toolchain
}

// NewRegistry returns a registry with the standard toolchains registered:
// C, C++, then Python C extension. The Python toolchain shares the .c
// suffix with plain C, so by-extension selection yields plain C; select
// the Python toolchain explicitly when targeting the interpreter.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(CToolchain())
	r.Register(CPPToolchain())
	r.Register(PythonCToolchain())
	return r
}

// Register adds a toolchain to the registry.
func (r *Registry) Register(tc Toolchain) {
	r.toolchains = append(r.toolchains, tc)
}

// ToolchainFor returns the first registered toolchain whose source suffix
// matches the given filename, or an error when none does.
func (r *Registry) ToolchainFor(sourceFile string) (Toolchain, error) {
	for _, tc := range r.toolchains {
		if matchesExtension(sourceFile, tc.SourceExt) {
			return tc, nil
		}
	}
	return Toolchain{}, fmt.Errorf("no toolchain registered for source file: %s", sourceFile)
}

// ToolchainByName returns the registered toolchain with the given name,
// matched case-insensitively.
func (r *Registry) ToolchainByName(name string) (Toolchain, error) {
	for _, tc := range r.toolchains {
		if strings.EqualFold(tc.Name, name) {
			return tc, nil
		}
	}
	return Toolchain{}, fmt.Errorf("no toolchain named %q", name)
}

// matchesExtension reports whether filename ends with the given suffix,
// case-insensitively.
func matchesExtension(filename, ext string) bool {
	return ext != "" && strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext))
}

// compilerFromEnv returns the binary named by the environment variable
// when set, the fallback otherwise.
func compilerFromEnv(envVar, fallback string) string {
	if cc := os.Getenv(envVar); cc != "" {
		return cc
	}
	return fallback
}

// defaultArtifactExt returns the platform suffix for loadable objects.
func defaultArtifactExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

func toolAvailable(tool string) bool {
	_, err := exec.LookPath(tool)
	return err == nil
}

// commandResult captures one external process invocation.
type commandResult struct {
	Argv       []string
	ExitStatus int
	Stdout     string
	Stderr     string
}

// runCommand executes argv with stdout and stderr captured separately.
//
// A non-zero exit status is returned as a *BuildError carrying the full
// command line and captured output. A process that could not be spawned
// at all is reported the same way with exit status -1.
func runCommand(ctx context.Context, argv []string, env map[string]string) (*commandResult, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	cmd.Env = os.Environ()
	for key, value := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := &commandResult{
		Argv:   argv,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if err == nil {
		res.ExitStatus = 0
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitStatus = exitErr.ExitCode()
	} else {
		// Spawn failure: the process never ran.
		res.ExitStatus = -1
		res.Stderr = err.Error()
	}

	return res, &BuildError{
		Command:    res.Argv,
		ExitStatus: res.ExitStatus,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
	}
}
