// Command nativemod demonstrates building and loading a native module at
// runtime: it compiles a source file into a shared object, loads it, calls
// its hello_world entry point, and cleans up the generated files.
package main

func main() {
	Execute()
}
