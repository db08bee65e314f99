// Package sinks contains analytics.Sink implementations.
package sinks
