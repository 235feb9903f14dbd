//go:build linux && ebpf

package progs

import "embed"

// The objects are built from the sources in steer/ with make before
// compiling with the ebpf tag.
//
//go:embed steer/*.o
var ebpfPrograms embed.FS

// GetSteerProgram will return the embedded sk_lookup program based on the
// provided path. This path is assumed to be provided in the context of the
// steer/ subdirectory so as to decouple the progs' package structure from
// the outside.
func GetSteerProgram(path string) ([]byte, error) {
	return ebpfPrograms.ReadFile("steer/" + path)
}
