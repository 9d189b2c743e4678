// Package events publishes stream lifecycle notifications to an MQTT
// broker. Publishing is optional; a nil Emitter discards everything, so
// callers never need to guard their publish sites.
package events
