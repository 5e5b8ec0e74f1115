// Package tmr implements a host-side driver for ThingMagic M5e/M6e-class
// UHF RFID reader modules. It speaks the module's framed binary
// request/response protocol over a byte transport (RS-232 or USB-serial),
// configures the radio, and runs tag inventory and tag memory operations
// across the Gen2 and ISO180006B air protocols.
//
// A Reader is opened against a Transport (normally one returned by Open,
// which wraps a serial port) and then Connected, which negotiates baud
// rate, boots the module out of its bootloader if necessary, probes
// antenna ports and seeds the set of parameters known to be supported.
// Once connected, Read executes a ReadPlan and returns the tags it read;
// internally it drains the module's tag buffer with HasMoreTags/
// GetNextTag. StartReading/StopReading layer a background worker on top
// of the same pipeline for asynchronous use.
//
// Concurrency: a Reader and its Transport are not safe for concurrent
// use. The driver sends one command at a time and does no locking around
// the transport, including while the background worker is reading.
package tmr
