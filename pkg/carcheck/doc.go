// Package carcheck stores uploaded vehicle photos, sends them to an external
// image classifier and keeps the classifier's verdict next to the file record.
//
// A single Service orchestrates the upload-and-analyze workflow on top of
// pluggable repositories (memory, MongoDB, Postgres), blob stores (memory,
// filesystem, S3) and classifiers (a hosted detection API or a local AI
// service). Implementations live in subpackages.
//
// Classification Payload
//
// The classifier owns the shape of its verdict. The service forwards and
// stores it as raw JSON and never looks inside; backends persist it verbatim
// (JSONB in Postgres, an embedded document in MongoDB).
package carcheck
