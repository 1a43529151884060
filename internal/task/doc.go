// Package task runs the dispatch service's periodic background work, such
// as cancelling pending requests nobody picked up. Jobs run on a ticker
// until the runner is stopped and never block HTTP request handling.
package task
