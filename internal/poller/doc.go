// Package poller schedules repeated status queries for in-flight tasks.
//
// Each tracked task owns one session. A session polls immediately on
// start, then backs off geometrically up to a configured ceiling. The
// session is released before its terminal callback fires, so a task
// never holds a timer past its final status. A failed query releases
// the session and surfaces the error through the callback; callers
// decide whether to restart tracking.
package poller
