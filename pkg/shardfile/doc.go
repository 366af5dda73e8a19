// Package shardfile implements the single-file container format that holds
// one partition pair's edges.
//
// A container starts with an 8-byte magic and the format version, followed
// by flush blocks of raw little-endian int64 values, and ends with a
// JSON-encoded column index (column name to ordered extent list) plus a
// fixed trailer. Columns grow by whole buffer flushes and interleave
// freely in the body; the footer makes any index sub-range of any column
// addressable with at most a handful of positional reads.
//
// Writers stamp the version before any data and only write the trailer
// when finalized, so a crashed session leaves a container no Reader will
// accept. Publication (temp file rename, object upload) is the storage
// backend's job, not this package's.
package shardfile
