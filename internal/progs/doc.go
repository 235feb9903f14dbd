// Package progs bundles the compiled eBPF objects so that the binary can be
// deployed without extra files.
package progs
