// Package odm is the object/data model shared by drivers: scalar wrappers
// (Null, Ascii, Text, Blob, Boolean, Counter, Date, Time, Timestamp,
// Duration, Int, SmallInt, Decimal, Double, Inet, Uuid), the List and Map
// composites and the generic Keyspace container.
//
// Each wrapper has exactly one textual form, returned by Render. Drivers rely
// on it when splicing values into queries.
package odm
