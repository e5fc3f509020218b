// Package httpapi serves the account endpoints of the e-learning platform
// over chi.
//
// Routes live under /api/users and /api/teachers. Errors are written as
// {"code": "<Reason>", "message": "<text>"} with a status fixed per reason;
// see [StatusFor]. Unknown errors become 500 InternalError without details.
package httpapi
