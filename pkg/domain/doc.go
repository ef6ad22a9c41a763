// Package domain defines the types exchanged over the layersync admin API.
//
// This package has no dependencies outside the Go standard library so that
// clients can decode admin responses without importing the daemon.
package domain
