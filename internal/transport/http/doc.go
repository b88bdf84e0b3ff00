// Package http contains the chi HTTP handlers for the license server.
//
// The public surface is the validation endpoint, which maps engine
// verdicts onto HTTP statuses:
//
//	missing_key / missing_machine_id  400
//	not_found                         404
//	revoked / expired / activation_limit  403
//	success                           200
//
// Storage faults map to 500 with reason "internal_error" so clients can
// never confuse "license invalid" with "server unavailable".
//
// Admin handlers (license CRUD, settings, the event feed) sit behind the
// session-auth middleware and are thin pass-throughs over the services
// layer.
package http
