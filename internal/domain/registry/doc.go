// Package registry provides the process-wide catalog of live pipeline components.
//
// Every data source, filter and display reachable by the pipeline driver has
// exactly one entry, keyed by a stable handle. Structures that hold handles
// (the filter chain, the display manager) install a detacher for their kind;
// Unregister runs the detacher under the registry write lock, so removing an
// entry and splicing it out of every referencing structure is one operation.
//
// Components:
//   - Registry: Handle-keyed store with kind filtering
//   - Entry: Registration record (handle, kind, name, instance, time)
//   - Detacher: Cascade hook run on unregister
//
// Lock Order:
//   - Registry lock is always taken before chain or manager locks
//
// Example Usage:
//
//	reg := registry.New(logger)
//	reg.SetDetacher(registry.KindFilter, chain.Detach)
//	h, err := reg.RegisterWith(registry.KindFilter, "bandpass", f, chain.Attach(f))
//	err = reg.Unregister(h)
package registry
