// Package permission maps portal roles to permission bitmasks used by the
// admin route gates.
//
// Bit positions are assigned by [Registry.Register] in registration order and
// are stable for the lifetime of the process. Both the registry and the
// [RoleManager] are frozen after construction.
//
// This package is a pure in-memory data structure with no I/O.
package permission
