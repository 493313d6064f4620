// Package nativemod provides ephemeral, on-demand compilation and dynamic
// loading of native extension modules.
//
// The package turns a single source file into a loadable shared object at
// runtime, loads it into the running process, and guarantees that cleanup
// removes exactly the filesystem paths it created, never pre-existing
// files or directories.
//
// # Basic Usage
//
// Create a Loader and use the scoped form, which cleans up on every exit
// path:
//
//	loader, err := nativemod.NewLoader(nativemod.Config{
//	    Name:      "mymodule",
//	    SourceDir: "/path/to/src",
//	})
//	if err != nil {
//	    return err
//	}
//
//	err = loader.WithLoaded(ctx, func(m *nativemod.Module) error {
//	    return m.Invoke("hello_world")
//	})
//
// Or drive the lifecycle explicitly:
//
//	module, err := loader.Load(ctx)
//	if err != nil {
//	    return err
//	}
//	defer loader.Cleanup()
//
//	if err := module.Invoke("hello_world"); err != nil {
//	    return err
//	}
//
// # Lifecycle
//
// A Loader moves through three stages:
//
//	NewLoader -> Build -> Import
//	   |          |         |
//	   |          +-- artifact on disk, tracked for cleanup
//	   +-- probes for a pre-existing artifact (used, never tracked)
//
// Load composes Build and Import idempotently: work already done is never
// repeated, and a successful build survives a failed import so a retry
// skips recompilation. Cleanup removes tracked paths bottom-up, skipping
// any directory that still contains entries it did not create.
//
// Once imported, the shared object stays mapped in the process for its
// lifetime; no unload is exposed. Whether an already-obtained handle keeps
// working after Cleanup deletes its backing file is platform behavior the
// package does not guarantee.
//
// # Toolchains
//
// Compilation is described by a Toolchain: the compiler command, the
// "build a shared object" flags, an optional external flag-query command
// (for example python3-config --cflags when targeting an embedding
// runtime), and the source/artifact suffixes. CToolchain is the default;
// NewRegistry selects a toolchain from a source filename.
//
// # Requirements
//
// Requires Go 1.25 or later and a C compiler on PATH for the default
// toolchain.
//
// # Platform Support
//
// Full support on Linux and macOS, where loading uses dlopen. Windows is
// not supported.
package nativemod
