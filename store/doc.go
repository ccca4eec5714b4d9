/*
Package store keeps track of scans and their live state in form of [Record]
objects, for serving scan status and scan history to clients.

Two [Store] implementations are available: [MemoryStore] keeps a capped
history in process memory, while [RedisStore] keeps records as JSON documents
in Redis so that the history survives restarts and can be shared.

Records are updated from scan events using [Record.Apply]. Once a record has
reached a terminal status it never changes its status again.
*/
package store
