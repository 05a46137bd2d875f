// Package services defines the error taxonomy shared by the download
// pipeline and helpers for wrapping stage failures with context.
//
// Every sentinel maps to one lecture-level failure class. Errors are resolved
// at lecture granularity: the orchestrator logs the cause, counts the lecture
// as failed, and moves on. Only startup configuration problems and explicit
// user interrupts abort a run.
package services
