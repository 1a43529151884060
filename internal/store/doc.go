// Package store defines the persistence interfaces used by the dispatch
// engine: users and customers, providers, requests and KYC records.
//
// Every mutation the engine performs goes through TxRunner.RunInTx, which
// hands the callback a Repositories value bound to a single transaction.
// Implementations must make the Lock* methods hold the row until that
// transaction ends so that read-validate-write sequences are atomic with
// respect to concurrent callers.
package store
