/*
Package manager ties together the job queue, scan orchestration, the scan
store, and the scan archive: it accepts scan requests, runs them as queued
jobs with a global limit on parallel scans, tracks their events in scan
records, and fans out these events to any number of subscribers, such as
WebSocket clients.
*/
package manager
