// Package compiler turns validated specification documents into the
// canonical design-system model: token reference chains resolved to
// literals, every collection normalized. Resolution failures (dangling
// references, cycles) are collected in full rather than fail-fast, and
// both the built system and the error list are deterministic with respect
// to document order.
package compiler
