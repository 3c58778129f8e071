// Package server implements the HTTP query API over the document warehouse.
//
// # Endpoints
//
//   - GET /healthz: liveness; pings the warehouse
//   - GET /collections/:name/documents: documents, optionally filtered by
//     ?field=<body field>&value=<exact value>, limited by ?limit= (default 50,
//     max 500)
//   - GET /collections/:name/counts/:field: value counts of a body field,
//     most frequent first
//
// Errors are JSON objects of the form {"error": "..."}: 400 for malformed
// input, 500 when the warehouse query fails.
package server
