package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nativemod/nativemod"
)

var (
	// Version is set via -ldflags.
	Version = "dev"

	verbose    bool
	noClean    bool
	moduleName string
	sourceDir  string
	installDir string
	toolchain  string

	logger = log.New(os.Stderr)

	rootCmd = &cobra.Command{
		Use:   "nativemod",
		Short: "Build and load a native module at runtime",
		Long: `nativemod compiles a source file into a loadable shared object,
loads it into the running process, invokes its hello_world entry point,
and removes every file it created.

The demo runs twice: once through the scoped API (cleanup guaranteed on
scope exit) and once through the explicit Load/Cleanup API.`,
		RunE: runDemo,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "run with verbose output")
	rootCmd.Flags().BoolVarP(&noClean, "no-clean", "d", false, "do not clean created files on scope exit")
	rootCmd.Flags().StringVarP(&moduleName, "module-name", "n", "mymodule", "name of module, and source file to compile")
	rootCmd.Flags().StringVarP(&sourceDir, "source", "s", "", "location of module source (default: testdata/src)")
	rootCmd.Flags().StringVarP(&installDir, "install", "i", "", "directory to install module object (default: ./bin, created if absent)")
	rootCmd.Flags().StringVarP(&toolchain, "toolchain", "t", "", "toolchain name (C, C++, or \"Python C extension\"; default: by source suffix)")
}

// Execute runs the root command through fang.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(Version),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// initConfig binds NATIVEMOD_* environment variables over flag defaults.
func initConfig() {
	viper.SetEnvPrefix("nativemod")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{"module-name", "source", "install", "toolchain"} {
		flag := rootCmd.Flags().Lookup(name)
		if flag == nil || flag.Changed {
			continue
		}
		if v := viper.GetString(name); v != "" {
			_ = flag.Value.Set(v)
		}
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := demoConfig()
	if err != nil {
		return err
	}

	// Scoped usage: load on entry, cleanup guaranteed on exit.
	logger.Info("Using scoped acquisition")
	loader, err := nativemod.NewLoader(cfg)
	if err != nil {
		return err
	}
	err = loader.WithLoaded(cmd.Context(), func(m *nativemod.Module) error {
		return m.Invoke("hello_world")
	})
	drainOutput(loader, 0)
	if err != nil {
		return err
	}

	// Explicit usage: build, import, invoke, then cleanup by hand.
	logger.Info("Explicitly invoking the loader API")
	loader, err = nativemod.NewLoader(cfg)
	if err != nil {
		return err
	}
	module, err := loader.Load(cmd.Context())
	printed := drainOutput(loader, 0)
	if err != nil {
		return err
	}
	if err := module.Invoke("hello_world"); err != nil {
		return err
	}

	if !noClean {
		result := loader.Cleanup()
		drainOutput(loader, printed)
		for _, skipped := range result.Skipped {
			logger.Warn("left non-empty directory in place", "dir", skipped.Path, "entries", len(skipped.Entries))
		}
	}

	return nil
}

// demoConfig assembles the loader configuration from flags and defaults.
func demoConfig() (nativemod.Config, error) {
	src := sourceDir
	if src == "" {
		src = filepath.Join("testdata", "src")
	}

	install := installDir
	if install == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nativemod.Config{}, fmt.Errorf("resolving working directory: %w", err)
		}
		install = filepath.Join(cwd, "bin")
	}

	cfg := nativemod.Config{
		Name:          moduleName,
		SourceDir:     src,
		InstallDir:    install,
		KeepArtifacts: noClean,
		Verbose:       verbose,
	}

	registry := nativemod.NewRegistry()
	if toolchain != "" {
		tc, err := registry.ToolchainByName(toolchain)
		if err != nil {
			return nativemod.Config{}, err
		}
		cfg.Toolchain = tc
	} else if tc, err := registry.ToolchainFor(findSource(src, moduleName)); err == nil {
		cfg.Toolchain = tc
	}

	if err := cfg.Toolchain.CheckTools(); err != nil {
		logger.Warn("toolchain check", "err", err)
	}

	return cfg, nil
}

// findSource looks for <name>.<ext> in dir to drive toolchain selection;
// it falls back to a .c name so the default toolchain applies.
func findSource(dir, name string) string {
	matches, err := filepath.Glob(filepath.Join(dir, name+".*"))
	if err == nil && len(matches) > 0 {
		return matches[0]
	}
	return name + ".c"
}

// drainOutput logs loader output lines starting at from and returns the
// new high-water mark, so later drains on the same loader do not repeat
// lines.
func drainOutput(loader *nativemod.Loader, from int) int {
	lines := loader.Output()
	for _, line := range lines[from:] {
		logger.Debug(line)
	}
	return len(lines)
}
