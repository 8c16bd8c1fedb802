// Package docdb refines the nosqlapi contract for document stores and holds
// the document entities: Database, Collection, Document and Index.
package docdb
