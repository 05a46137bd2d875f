// Package license bridges to the externally provisioned key-exchange
// device and drives the per-lecture license acquisition state machine.
//
// The device performs all request/response cryptography; this package only
// sequences it: open a session, request a challenge for a protection
// header, submit the server's license, extract content keys, close. A
// session never outlives the acquisition attempt that opened it, and Close
// is idempotent so callers can defer it on every path.
package license
