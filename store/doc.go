/*
Package store persists the latest known state of every tracked object.

Every object is stored as a single record keyed by its object ID.  Upserting a
record with a known ID replaces that record's fields, otherwise the record is
appended.  Three backends are provided:

	FileStore    the JSON array file is read, updated and rewritten in full on
	             every upsert, optionally through an atomic replace
	IndexedStore records are indexed in memory and the JSON array file is
	             atomically rewritten on Flush
	SQLiteStore  records are rows of an SQLite table keyed by object ID

All persistence failures are reported wrapping ErrPersistence.
*/
package store
