// Package keys is the cache key layout for journey documents.
//
//	<ns>:{<id>}          document
//	<ns>:{<id>}:version  version counter
//	<ns>:ids             journey index
//
// The braces are a Redis Cluster hash tag: a document and its counter always
// land in the same slot, which WATCH/MULTI over both keys requires.
package keys

// Doc returns the document key for id.
func Doc(ns, id string) string {
	return ns + ":{" + id + "}"
}

// Version returns the version key paired with a document key.
func Version(docKey string) string {
	return docKey + ":version"
}

// Index returns the key of the journey ID list.
func Index(ns string) string {
	return ns + ":ids"
}
