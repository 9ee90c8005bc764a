// Package watermark embeds and detects a keyed statistical ownership mark in
// integer-valued records.
//
// A keyed oracle F(secret, key) decides, per record, whether the record
// carries a mark and, if so, which attribute, which low-order bit and which
// bit value. Insert forces those bits; Detect recomputes them over a suspect
// copy and reports how many agree. Without the secret the marked positions
// are indistinguishable from noise, and with a different secret the match
// ratio falls to about one half.
//
// Tabular datasets are modeled as Record values keyed by their primary key.
// File metadata is the same thing with one attribute per record; see
// FromMetadata.
package watermark
