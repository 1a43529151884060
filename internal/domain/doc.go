// Package domain contains the core business entities, value objects, and
// domain logic of the dispatch service: users and their roles, providers and
// their presence, KYC records, and the service-request lifecycle.
//
// Nothing in this package performs I/O. The rules that need a consistent view
// of several rows (for example "one active job per provider") are expressed
// here as pure checks and enforced transactionally by the service layer.
package domain
