// Package wire defines the access-layer wire format of Bluetooth mesh messages.
//
// An access message is an opcode followed by opaque, model-specific
// parameters. The daemon delivers and accepts these as raw byte arrays;
// this package frames and unframes them.
//
// # Opcodes
//
// Opcodes are 1, 2 or 3 octets long. The two most significant bits of the
// first octet select the form:
//
//	0xxxxxxx                    one-octet opcode (0x7F is reserved)
//	10xxxxxx xxxxxxxx           two-octet opcode
//	11xxxxxx cccccccc cccccccc  three-octet vendor opcode (company ID, little endian)
//
// # Payload Bounds
//
// The upper transport layer carries at most 384 octets of which 4 are the
// 32-bit TransMIC, so an access payload (opcode and parameters together)
// never exceeds MaxAccessPayloadSize octets.
//
// # Addresses
//
// Mesh addresses are 16 bits wide. Unicast addresses identify a single
// element, group and virtual addresses identify a set of elements. Virtual
// addresses may also be delivered as their full 128-bit label UUID.
package wire
