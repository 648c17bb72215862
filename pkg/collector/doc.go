// Package collector implements the core of the collection engine: timestamp
// normalization, window filtering, the identity-keyed accumulator shared by
// both collection paths, run statistics, and the primary collector that
// drains the source's newest-first search stream.
package collector
