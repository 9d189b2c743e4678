// Package protocol implements parsing and validation of the Ultimate 64
// A/V stream datagrams: the fixed little-endian video header layout with
// its in-band last-packet flag, and PCM payload extraction from audio
// datagrams. All functions are pure; malformed datagrams are reported as
// errors for the caller to discard.
package protocol
