// Package params turns render parameters into the canonical query string the
// remote service signs and caches on.
//
// A Bag keeps declared order, but Canonicalize imposes its own byte-wise
// order over translated wire names, so insertion order never changes output.
package params
