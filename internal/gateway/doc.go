// Package gateway wraps the translation gateway's HTTP API: task
// status queries, video uploads, result downloads, and the versioned
// settings resource.
package gateway
