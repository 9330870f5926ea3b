// Package pebblestore wraps Pebble with the key-value contract the derived
// stores are written against: set, get, delete, and ordered prefix scans.
// Each consuming service owns one DB instance for its derived records.
package pebblestore
