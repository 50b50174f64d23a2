// Package capstore provides persistent backends for resolved device
// capabilities. A SQLite store suits single-host deployments; a Redis store
// suits fleets where several gateways share one cache.
package capstore
