// Package backend is the typed client for the Studyrooms backend API.
//
// Every endpoint is POST <base>/api/py/<endpoint> with a JSON body; the JSON
// response carries an authoritative "status" field. Transport trouble surfaces
// as ErrUnavailable; domain statuses map to the sentinels in errors.go, wrapped
// in *StatusError. Calls run through a circuit breaker.
package backend
