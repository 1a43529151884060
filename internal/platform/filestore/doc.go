// Package filestore implements service.DocumentStorage on a local directory
// that is served elsewhere under a configured base URL.
package filestore
