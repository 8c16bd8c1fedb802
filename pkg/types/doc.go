// Package types defines the capability contract shared by every nosqlapi
// driver: the Connection, Session, Selector and Batch roles, the generic
// Response envelope, the error taxonomy and the connection Config.
//
// Drivers embed BaseConnection, BaseSession, BaseSelector and BaseBatch to
// inherit the bookkeeping the contract prescribes (connected flag, item
// count, description, command list) and implement the paradigm operations
// declared in kvdb, columndb, docdb and graphdb.
package types
