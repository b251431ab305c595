// Package structapi packs and unpacks C-style binary structures.
//
// A Struct is an ordered list of named fields describing a binary layout.
// Layouts can be declared field by field, compiled from struct format
// strings, or derived from Go struct tags. Decoded records can be queued
// durably and batched into a SQL store through the queue and sender
// subpackages.
package structapi
