// Package protocol encodes host commands and decodes device lines.
package protocol

// The data logger firmware speaks a fixed ASCII protocol at 115200 baud.
// The host sends single-byte commands:
//
//   R        dump EEPROM contents
//   S        report the 4 sensor flags
//   1..4     toggle sensor N
//
// The device answers with newline terminated lines. A dump is a series of
// "<prefix> <address>: <value>" lines closed by "END", or the single line
// "No valid data in EEPROM to read." when nothing was logged. The state
// report is one line of four 0/1 digits separated by spaces.
//
// Producer: data logger firmware
// Consumer: host (this module)
