// Package model defines the mesh model capability.
//
// # Node Hierarchy
//
// A mesh node is organized in three levels:
//
//	Node > Element > Model
//
// A Node is a device on the mesh network with one primary unicast address.
// Each Element of the node gets its own consecutive unicast address.
// Elements host Models, which process typed messages:
//
//	Node (0x00bd)
//	├── Element 0 (0x00bd)
//	│   ├── Configuration Server (SIG 0x0000)
//	│   └── Sensor Server (SIG 0x1100)
//	└── Element 1 (0x00be)
//	    └── Vendor Model (company 0x05F1, model 0x0001)
//
// # Identifiers
//
// Models are identified either by a 16-bit SIG assigned identifier or by a
// (company, model) pair for vendor models. See ModelIdentifier.
//
// # Parsing
//
// A Model recognizes the opcodes of its own message family. Parse returns
// (nil, nil) for opcodes that belong to another model so that callers can
// try the models of an element in turn. A recognized opcode with malformed
// parameters yields a wire payload error.
package model
