// Package bus maintains the set of objects an application exports on D-Bus.
//
// A Registry tracks every exported object path together with its
// interfaces. Objects are inserted inside a transaction: if any insertion
// fails, all objects inserted by the same transaction are unexported again
// before the error is returned.
//
// Besides the interfaces an object declares, the registry serves the
// standard interfaces for it:
//
//   - org.freedesktop.DBus.Properties for interfaces with properties
//   - org.freedesktop.DBus.Introspectable for every object
//   - org.freedesktop.DBus.ObjectManager for objects marked as managers
//
// The answers are computed from the registry contents at call time, so the
// object tree seen by the remote side always matches the registry.
//
// # Exporter
//
// The registry exports through an Exporter, which *dbus.Conn implements.
// Removing an object exports nil for each of its interfaces; the bus then
// answers calls on the path with org.freedesktop.DBus.Error.UnknownObject.
package bus
