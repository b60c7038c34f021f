// Package tracker coordinates task lifecycle tracking. It binds the
// poll engine to the persistent task store and fans results out to
// subscribers: every observed status lands in the store before any
// subscriber sees it, so a reader that wakes up late still finds the
// latest state on disk.
package tracker
