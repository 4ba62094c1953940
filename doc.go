// Package edix is an embedded client for the EDID search index: a
// serverless, database-free columnar index over ~140,000 display
// identification records, published as static binary files.
//
// A snapshot consists of a JSON manifest, one index file per searchable
// dimension (vendor names, model names, ...) and 256 bucket shards keyed by
// the first byte of each record identifier. Index files map search keys to
// Roaring bitmaps of global record indices; the manifest's per-bucket
// counts translate a global index into a (bucket, local index) pair; the
// bucket shard resolves the local index to the raw EDID payload and its
// metadata.
//
// The Engine wires these stages together over any blobstore.Store (local
// directory, HTTP static hosting, S3, MinIO):
//
//	store, _ := blobstore.NewHTTPStore("https://cdn.example.com/edid/v3/")
//	eng, err := edix.Open(ctx, store)
//	if err != nil { ... }
//
//	matches, _ := eng.Search(ctx, "vendors", "dell")
//	records, _ := eng.Lookup(ctx, "vendors", "dell", 25)
//
// All decoding is pure and allocation-bounded; the only I/O happens in the
// loaders, which fetch each file at most once.
package edix
