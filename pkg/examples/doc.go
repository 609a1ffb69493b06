// Package examples contains small mesh applications built on package mesh:
// a temperature sensor server that publishes readings, a sensor client that
// prints the readings it receives, and a driver for provisioning devices.
//
// They are used by the mesh-tool command and serve as templates for
// applications of their own.
package examples
