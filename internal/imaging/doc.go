// Package imaging defines the contract strata's stages use to reach the
// external imaging library, and a client that fulfils it by invoking a bridge
// executable.
//
// Every operation is synchronous. It either produces its output files or returns an
// error wrapping services.ErrExternalOperation. Cancellation of ctx kills the
// bridge process.
package imaging
