// Package service contains the dispatch engine: the request lifecycle, the
// provider presence and KYC gate, candidate matching and the admin views.
//
// Every operation takes the caller's already-verified domain.Identity and
// runs its read-validate-write sequence inside one store transaction, so a
// failed call changes nothing and concurrent calls on the same request or
// provider resolve as first committed wins. Lifecycle events are emitted
// after commit.
//
// The service layer depends on domain entities and the store interfaces,
// never on a specific storage implementation.
package service
