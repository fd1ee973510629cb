// Package osalgo is the root of a Go reimplementation of NASA's core
// Operating System Abstraction Layer: an object registry, a virtual
// filesystem mount table, a filesystem volume manager, shared-memory
// message queues, counting semaphores, a console ring buffer, a
// monotonic-deadline timed-receive adapter, and directory iteration.
//
// The facade in osal aggregates every subsystem behind one Context; the
// cmd/osalctl command boots a Context from a configuration and an optional
// mount manifest and reports on it. Each subsystem lives under internal/
// as its own package.
package osalgo
