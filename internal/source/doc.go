// Package source loads documents into plain value trees.
//
// A document is a local .json, .yaml, .yml or .toml file, or an object in
// S3 addressed as s3://bucket/key. Decoded documents are normalised to the
// value model of the state package: objects become map[string]any, arrays
// []any, and integral numbers int64.
package source
