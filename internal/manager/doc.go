// Package manager owns the single loaded inference session. It is split by
// concern:
//
//   - manager.go: Manager, NewWithConfig, Snapshot.
//   - config.go: Config and package defaults.
//   - load.go: SetActiveModel and the GPU-layer fallback loop.
//   - unload.go: Unload and Reload.
//   - lease.go: read access to the loaded context for generation.
//   - errors.go: LoadError, ErrNoModelLoaded and helpers.
//   - metrics.go: Prometheus collectors for load attempts and offload.
//
// Loads and unloads are serialized; at most one weights handle is open at
// any time. Generation holds a Lease, and Unload waits for outstanding leases
// before freeing native memory.
package manager
