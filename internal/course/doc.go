// Package course defines the typed curriculum model the downloader
// consumes and the loader that resolves a collaborator-produced JSON export
// into it.
//
// The export mirrors the portal's loosely-typed curriculum records; resolving
// them into closed variants happens exactly once here, so the rest of the
// pipeline never probes optional fields. Curriculum discovery and pagination
// live with the collaborator that produces the export, not in this tool.
package course
