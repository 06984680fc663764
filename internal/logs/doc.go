// Package logs reads the strata log file for the CLI.
//
// Last returns the final lines of the file along with the offset where
// reading stopped. Since reads everything after an offset, and Follow polls
// from an offset, handing each new line to a callback until the context
// ends. A file that shrinks under Follow is treated as rotated and read
// again from the start.
package logs
