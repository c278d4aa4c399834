// Package artifact moves component code between a caller's filesystem and
// the executor that runs the component.
//
// A "src" input names a local directory. Before a remote call the Stager
// optionally runs the source's build hook, packs the directory into a zip,
// uploads it to a pre-signed URL obtained from Targets, and rewrites "src"
// to the download URL. On the executing side the Fetcher downloads and
// extracts the package into a scratch directory.
//
// Uploads and downloads retry transient failures with exponential backoff.
// StageInputs stages the "src" of a call and of every child declaration it
// carries in one StageAll batch, which fans out with errgroup and uploads
// each directory once.
package artifact
