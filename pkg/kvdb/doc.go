// Package kvdb refines the nosqlapi contract for key-value stores and holds
// the key-value entities: Keyspace, Subspace, Item, ExpiredItem and Index.
package kvdb
