// Package attrstore provides the storage core for columnar attribute data:
// deduplicated, refcounted value stores addressed by compact EntryRef
// handles, with lock-free readers and online compaction.
//
// Values of an attribute are stored once, behind a 32-bit EntryRef that
// packs a buffer id and an offset. An ordered dictionary maps values to
// refs, so enumeration and range iteration run in value order. Removals
// only mark entries dead; a background compactor copies the live entries
// into fresh buffers and the superseded memory is freed generation-safely,
// after every reader that could still see it has finished.
//
// # Quick Start
//
//	attr := attrstore.New[string]("tags")
//	defer attr.Close()
//
//	ref, _ := attr.Add("red")
//	fmt.Println(attr.Get(ref)) // "red"
//	attr.Remove(ref)
//	attr.Commit()
//
// Readers pin the memory they traverse with a guard:
//
//	r := attr.Reader()
//	defer r.Release()
//	// every EntryRef dereferenced here stays valid until Release
//
// Background maintenance compacts stores whose dead ratio crosses the
// configured threshold:
//
//	attr.StartMaintenance(ctx)
//
// Attribute snapshots round-trip through Save/Load with an optional
// compression codec (s2, lz4).
//
// The subpackages expose the individual layers: datastore (buffer slabs),
// dictionary (ordered value index), uniquestore (dedup and refcounts),
// enumstore (typed attribute values, postings, serialization), generation
// (reader liveness) and maintenance (background compaction).
package attrstore
