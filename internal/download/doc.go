// Package download walks a course curriculum sequentially and materializes
// each lecture on disk: plain and protected videos, articles, captions,
// and supplementary files. Lectures are processed strictly one at a time
// with randomized pauses between them; failures are isolated per lecture
// so one broken item never aborts the run.
package download
