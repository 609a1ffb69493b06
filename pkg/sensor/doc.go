// Package sensor implements the Sensor Server and Sensor Client models.
//
// The sensor models exchange readings as marshalled sensor data: a sequence
// of records, each a small header naming the property and the length of the
// raw value followed by the value itself.
//
// # Marshalled Sensor Data
//
// Format A packs the header into two octets (little-endian):
//
//	bit 0      format (0)
//	bits 1-4   length - 1
//	bits 5-15  property ID (11 bits)
//
// Format B uses three octets:
//
//	octet 0    format (1) | (length - 1) << 1
//	octets 1-2 property ID (16 bits, little-endian)
//
// A Format B length field of 0x7F denotes a zero-length value.
//
// # Data
//
// The interpretation of raw values is application specific. A Data value
// decodes and encodes the readings of the properties listed in the model
// Config; see Raw for a pass-through implementation.
package sensor
