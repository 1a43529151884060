// Package events carries lifecycle notifications from the dispatch services
// to any number of in-process handlers.
//
// Services emit an Event only after the transaction that produced it has
// committed. Handlers observe; a failing handler is logged and never undoes
// or blocks the change that was already made.
package events
