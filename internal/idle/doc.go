// Package idle queries the desktop session for the time since the last user
// input.
//
// Sources never cache: every Idle call asks the session again. A failed query
// is reported as *QueryError; what to do about it is decided by the caller
// (see WithFallback).
package idle
