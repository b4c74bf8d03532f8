// Package manifest persists release manifests in an object store.
//
// StorageRepository reads and writes RELEASES.json documents keyed by
// platform/arch under a base path and exposes the Repository interface the
// publisher depends on. Loads return the document revision (ETag) so writes
// can be made conditional on nobody having replaced it in between.
package manifest
