// Package kernel holds the leaf numeric routines executed by tasks. Kernels
// work on column-major host slices and perform no argument validation;
// callers guarantee that every index they imply is in bounds.
package kernel
