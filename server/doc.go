/*
Package server exposes scans over HTTP and streams scan events to WebSocket
clients.

# Routes

  - GET /health: liveness check.
  - POST /api/scan: submits a scan request, returning the scan ID.
  - GET /api/scan/{id}: the summary of a finished scan, or the live state of a
    queued or running scan.
  - DELETE /api/scan/{id}: cancels a queued or running scan.
  - GET /api/scans: lists recent scans, newest first.
  - GET /ws: streams the events of all scans as JSON messages of the form
    {"event": "scan:progress", "data": {...}}.
*/
package server
