// internal is internal packages for selfmon.
//
// The monitor package ties the others together: probe sends requests,
// checklog and incident keep the history on a store backend, and stats aggregates it.
// The endpoint, metrics, and schedule packages drive a Monitor from outside.
package internal
