// Package memory implements the store interfaces in process memory. It is
// used by service and API tests and by local runs without a database.
//
// Transactions are serialised by a single mutex and roll back by restoring
// a snapshot, so a failed operation leaves no trace. Code running inside
// RunInTx must use the repositories it is given; calling Repositories on
// the same Store from inside a transaction deadlocks.
package memory
