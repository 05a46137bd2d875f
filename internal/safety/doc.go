// Package safety enforces the volume limits that keep runs looking like a
// patient human: a daily cap on distinct courses and a per-run cap on
// lectures. The daily ledger survives restarts in a small JSON state file
// and resets on date rollover.
package safety
