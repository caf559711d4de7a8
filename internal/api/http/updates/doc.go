// Package updates exposes the release resolution engine over HTTP.
//
// The Server maps engine operations onto the documented /api/updates/* and
// /api/setup/* endpoints plus the /health liveness probe. Every response is
// a JSON envelope with a success flag; engine failure kinds map to HTTP
// statuses here (bad input 400, unknown releases 404, store corruption and
// integrity failures 500) so the engine itself stays transport-free.
package updates
