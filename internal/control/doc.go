// Package control starts and stops the Ultimate64 A/V streams. It encodes
// the binary commands of the machine's TCP command port, provides a
// single-attempt TCP client and an HTTP fallback for newer firmware, and
// can locate devices on the local network via mDNS.
package control
