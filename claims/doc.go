// Package claims provides the durable claim table behind interfaces.ClaimStore.
//
// Two implementations are available:
//
//   - MemoryStore keeps claims in process memory. It backs tests and
//     single-process deployments without a database.
//   - PostgresStore persists claims in PostgreSQL using the schema embedded
//     in the migrations directory.
//
// # Transitions
//
// Transition is the only path that changes a claim's status. Both stores
// check the expected status and write the mutated record as one atomic step:
// MemoryStore under its mutex, PostgresStore inside a transaction holding a
// row lock (SELECT ... FOR UPDATE). A status mismatch yields an
// *interfaces.ConflictError naming the current status and writes nothing, so
// two concurrent approvals of the same claim cannot both succeed.
//
// Claims are never deleted.
package claims
