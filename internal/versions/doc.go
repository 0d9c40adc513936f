// Package versions records and replays entity change history.
//
// Each change is stored as one row in the version log: an RFC 7386 merge
// patch against the previous state, plus a full JSON snapshot on the first
// version and every Nth after that. Reconstructing a version finds the
// nearest snapshot at or below it and applies the intervening deltas in
// order.
//
// The repository never reads or writes entities themselves; it only needs
// the version operations, expressed by the Scope interface. Passing a
// storage.Tx as the scope makes the version write atomic with whatever else
// the transaction does.
package versions
