// Package catalog holds the product and article model, the immutable catalog
// snapshot, the faceted filter engine and the global search ranking.
//
// Everything in this package is a pure function of its inputs: a Snapshot never
// changes after construction and Filter/Search never mutate the slices they are
// given, so a single snapshot can be shared by any number of request handlers.
package catalog
