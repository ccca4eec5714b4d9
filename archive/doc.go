/*
Package archive persists scan summaries as JSON documents, one file per scan
named after the scan ID, inside a data directory.

Summaries are written atomically: a temporary file in the same directory gets
written and synced first, and then renamed into place. Readers thus either see
the complete previous document or the complete new one, but never a partially
written one.
*/
package archive
