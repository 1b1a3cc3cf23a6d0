// Package ports defines the interfaces that connect the ebridge core to the
// outside world.
//
// # Port Interfaces
//
//   - [Transport]: one established byte stream (TCP, TLS, or in-memory)
//   - [Processor]: the external batch processing capability
//   - [Logger]: structured logging abstraction
//
// Core packages (internal/conn, internal/registry, internal/scheduler) depend
// only on these interfaces. Adapters under internal/adapters provide concrete
// implementations.
package ports
