// Package domain contains the core entities of the document fetcher: the fetch
// task and its status state machine, the paused challenge session that carries
// an external site's cookies between requests, fetched artifacts, and the
// error taxonomy shared by every layer.
//
// The package has no dependencies on storage, transport or the external site.
// Other packages express their results in these types.
package domain
