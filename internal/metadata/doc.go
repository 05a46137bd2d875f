// Package metadata is the thin HTTP surface onto the course portal that the
// download core needs at run time: fetching a fresh license token and
// manifest URL immediately before each protected lecture, pulling article
// bodies missing from the curriculum export, and retrieving manifests,
// captions, and supplementary files.
//
// Session establishment, cookie bootstrap, and paginated curriculum listing
// belong to the collaborator that produces the curriculum export; only the
// resulting credentials are consumed here.
package metadata
