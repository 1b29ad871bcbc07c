// Package hub layers a typed-message envelope and lifecycle management on
// top of raw websocket connections, for both the client and server role.
//
// Every message on the wire is one JSON envelope {type, data}. A Conn
// decodes inbound frames and dispatches them as named events; a Server
// accepts connections, assigns identity, keeps the live set and re-emits
// every connection's typed events from a single place. Decode failures
// follow the error/passthrough policy on each connection: reply with an
// error envelope and raise a local error event, or, in passthrough mode,
// surface the raw bytes untouched so non-enveloped peers still work.
package hub
