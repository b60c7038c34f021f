// Package api defines the wire types shared with the translation
// gateway and the error taxonomy used to classify its failures.
package api
