// Package decrypt turns a protected adaptive manifest plus content keys
// into a playable local file. It drives the external downloader for the
// elementary streams, then a decrypt+remux pass, falling back to a
// standalone packager when the primary pass produces nothing usable.
// Success is judged purely by the output post-condition, never by tool
// exit codes.
package decrypt
