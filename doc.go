// Package filesdb is the composition root of a JSON document store with
// optimistic concurrency.
//
// Every document has a version token derived from its content. A write
// may carry the token the caller last saw; if the document changed in the
// meantime the write is rejected with a conflict (status 409) and the
// caller decides what to do. The store never retries on its own;
// Store.Update is the opt-in read-modify-write loop.
//
// Documents live in a space reached through a transport:
//
//   - "fs": one JSON file per document, atomic writes, lock files.
//   - "badger": BadgerDB records with transactional compare-and-swap.
//   - "memory": an in-process map, mainly for tests.
//   - "mcp": a remote space served over the Model Context Protocol.
//
// Usage:
//
//	store, err := filesdb.Open(ctx, "./data", filesdb.WithLogger(logger))
//
//	doc, err := store.Read(ctx, "/settings.json")
//	tag, err := store.Write(ctx, "/settings.json", settings, doc.ETag)
//	if filesdb.IsConflict(err) {
//		// re-read and merge
//	}
package filesdb
