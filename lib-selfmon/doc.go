// Package selfmon is the data model of selfmon.
//
// The types in this package are the persisted shape of the check log and the incident list, and also the shape of the HTTP API.
// Usually imported as `api`.
package selfmon
