// Package api adapts HTTP to the dispatch services: it decodes and validates
// requests, resolves the caller's identity from the auth middleware, calls
// the service layer and maps domain errors to status codes. Handlers never
// write raw error text to a response.
package api
