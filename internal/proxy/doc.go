// Package proxy fetches the complete product list from the upstream product
// API. It follows pagination when the upstream advertises it and otherwise
// falls back to probing a list of query variants known to lift the page size.
package proxy
