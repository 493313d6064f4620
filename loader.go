package nativemod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Config controls a Loader.
//
// Name and SourceDir are required. Zero values elsewhere give the behavior
// of the demo driver: install under <cwd>/install, compile with the
// default C toolchain, clean up when a WithLoaded scope ends.
type Config struct {
	// Name identifies the module. It is also the base filename of both
	// the source file (Name + Toolchain.SourceExt) and the produced
	// artifact (Name + Toolchain.ArtifactExt).
	Name string

	// SourceDir is the directory containing the module source.
	SourceDir string

	// InstallDir is where the compiled artifact is written; created if
	// absent. Defaults to "install" under the working directory.
	InstallDir string

	// Toolchain describes the compiler invocation. Defaults to
	// CToolchain.
	Toolchain Toolchain

	// KeepArtifacts disables the cleanup normally run when a WithLoaded
	// scope ends (including the error path of acquisition).
	KeepArtifacts bool

	// Verbose records detailed process reports in the loader output.
	Verbose bool

	// Env is extra environment for spawned toolchain processes.
	Env map[string]string
}

// Loader manages the full lifecycle of one native module: deciding whether
// a build is needed, driving the external toolchain, loading the produced
// artifact, and tracking exactly which paths it created so Cleanup removes
// only its own artifacts.
//
// A Loader is single-threaded: every operation runs to completion before
// returning, and two Loaders must not share an install dir and name.
type Loader struct {
	cfg Config

	artifactPath string

	// built is the artifact path once a build succeeded or a pre-existing
	// artifact was detected at construction; empty otherwise. It never
	// reverts.
	built string

	// module is the cached handle once Import succeeded.
	module *Module

	// created lists every filesystem path this Loader brought into
	// existence, and nothing else. Cleanup is scoped to exactly this
	// list.
	created []string

	output []string
}

// NewLoader validates cfg, derives the artifact path, and probes for a
// pre-existing artifact. When one is found the loader starts in the built
// state and the artifact is not tracked for cleanup, so a later Cleanup
// will not delete it.
func NewLoader(cfg Config) (*Loader, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("module name must not be empty")
	}
	if cfg.SourceDir == "" {
		return nil, fmt.Errorf("source dir must not be empty")
	}

	if cfg.Toolchain.Compiler == "" {
		cfg.Toolchain = CToolchain()
	}
	if cfg.Toolchain.ArtifactExt == "" {
		cfg.Toolchain.ArtifactExt = defaultArtifactExt()
	}

	sourceDir, err := filepath.Abs(cfg.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("resolving source dir: %w", err)
	}
	cfg.SourceDir = sourceDir

	installDir := cfg.InstallDir
	if installDir == "" {
		installDir = "install"
	}
	installDir, err = filepath.Abs(installDir)
	if err != nil {
		return nil, fmt.Errorf("resolving install dir: %w", err)
	}
	cfg.InstallDir = installDir

	l := &Loader{
		cfg:          cfg,
		artifactPath: filepath.Join(installDir, cfg.Name+cfg.Toolchain.ArtifactExt),
	}

	if info, err := os.Stat(l.artifactPath); err == nil && info.Mode().IsRegular() {
		l.built = l.artifactPath
		l.logf("Detected previous object file %s", l.artifactPath)
	}

	return l, nil
}

// Load drives the loader to the loaded state and returns the module
// handle: it builds if no build has happened and imports if no import has
// happened, then returns the cached handle on subsequent calls without
// repeating either step.
//
// On failure the partial progress is kept; a successful build survives a
// failed import, so retrying Load skips recompilation.
func (l *Loader) Load(ctx context.Context) (*Module, error) {
	if l.built == "" {
		l.logf("No pre-existing build.")
		if _, err := l.Build(ctx); err != nil {
			return nil, err
		}
	} else {
		l.logf("Source previously built in %s", l.built)
	}

	if l.module == nil {
		l.logf("No previously imported module.")
		if _, err := l.Import(); err != nil {
			return nil, err
		}
	} else {
		l.logf("Module already imported.")
	}

	return l.module, nil
}

// Build compiles SourceDir/<Name><SourceExt> into the artifact path as a
// shared object and returns that path.
//
// The install dir is created if absent (with any missing parents, all
// recorded for cleanup); an install path that exists as a non-directory is
// an *InstallPathError. The toolchain flag-query command, when configured,
// and the compiler are then run in sequence; a non-zero exit from either
// is a *BuildError carrying the command line, exit status, and captured
// output. The artifact is tracked for cleanup only after a successful
// compile, so a partially written object never survives as valid state,
// while an install dir created for a failed build stays tracked and is
// removed by Cleanup.
func (l *Loader) Build(ctx context.Context) (string, error) {
	if l.built != "" {
		return l.built, nil
	}

	if err := l.ensureInstallDir(); err != nil {
		return "", err
	}

	l.logf("Checking toolchain configuration flags")
	extraFlags, queryRes, err := l.cfg.Toolchain.queryFlags(ctx, l.cfg.Env)
	if queryRes != nil {
		l.report(queryRes, err == nil)
	}
	if err != nil {
		return "", err
	}

	sourcePath := filepath.Join(l.cfg.SourceDir, l.cfg.Name+l.cfg.Toolchain.SourceExt)
	argv := l.cfg.Toolchain.compileCommand(sourcePath, l.artifactPath, extraFlags)

	if l.cfg.Verbose {
		l.logf("Building native module using following command:")
		l.output = append(l.output, formatCommandLines(argv))
	}

	res, err := runCommand(ctx, argv, l.cfg.Env)
	l.report(res, err == nil)
	if err != nil {
		return "", err
	}

	l.created = append(l.created, l.artifactPath)
	l.built = l.artifactPath
	l.logf("Build successful")

	return l.built, nil
}

// Import loads the built artifact into the process as a native module and
// returns its handle. The artifact must have been built (or detected at
// construction). Repeated calls return the cached handle without loading
// again.
//
// Failures (missing file, malformed object, loader rejection) are
// reported as *LoadError. The loaded object stays mapped for the life of
// the process; there is no unload.
func (l *Loader) Import() (*Module, error) {
	if l.module != nil {
		return l.module, nil
	}
	if l.built == "" {
		return nil, &LoadError{Path: l.artifactPath, Err: fmt.Errorf("module has not been built")}
	}

	module, err := openModule(l.cfg.Name, l.built)
	if err != nil {
		return nil, err
	}

	l.module = module
	return l.module, nil
}

// WithLoaded is the scoped form of the lifecycle: it loads the module,
// passes the handle to fn, and runs Cleanup when the scope ends, on every
// exit path including a failed load, unless KeepArtifacts is set.
//
// The error from fn (or from loading) is returned unchanged.
func (l *Loader) WithLoaded(ctx context.Context, fn func(*Module) error) error {
	l.logf("Entering scope")

	module, err := l.Load(ctx)
	if err != nil {
		// A failed build may still have created the install dir.
		if !l.cfg.KeepArtifacts {
			l.Cleanup()
		}
		return err
	}

	defer func() {
		l.logf("Exiting scope")
		if !l.cfg.KeepArtifacts {
			l.Cleanup()
		}
	}()

	return fn(module)
}

// ArtifactPath returns the derived path installDir/<name><artifact-ext>.
func (l *Loader) ArtifactPath() string {
	return l.artifactPath
}

// Built reports whether the artifact has been built or was detected at
// construction.
func (l *Loader) Built() bool {
	return l.built != ""
}

// Loaded reports whether the module has been imported.
func (l *Loader) Loaded() bool {
	return l.module != nil
}

// CreatedPaths returns a copy of the paths this loader created and still
// tracks for cleanup.
func (l *Loader) CreatedPaths() []string {
	return append([]string{}, l.created...)
}

// Output returns the recorded progress and process-report lines.
func (l *Loader) Output() []string {
	return append([]string{}, l.output...)
}

// ensureInstallDir creates the install dir if needed, recording every
// directory that did not previously exist.
func (l *Loader) ensureInstallDir() error {
	dir := l.cfg.InstallDir

	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return &InstallPathError{Path: dir}
		}
		l.logf("Using pre-existing directory %s", dir)
		return nil
	}

	// Walk up to the first existing ancestor so cleanup can remove every
	// directory this loader created, and nothing above it.
	var missing []string
	for p := dir; ; p = filepath.Dir(p) {
		if _, err := os.Stat(p); err == nil {
			break
		}
		missing = append(missing, p)
		if p == filepath.Dir(p) {
			break
		}
	}

	l.logf("Creating %s", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating install dir %s: %w", dir, err)
	}

	l.created = append(l.created, missing...)
	return nil
}

func (l *Loader) report(res *commandResult, ok bool) {
	if !l.cfg.Verbose {
		return
	}
	l.output = append(l.output, commandReport(res.Argv, res.ExitStatus, res.Stdout, res.Stderr, ok))
}

func (l *Loader) logf(format string, args ...any) {
	if !l.cfg.Verbose {
		return
	}
	l.output = append(l.output, fmt.Sprintf(format, args...))
}
