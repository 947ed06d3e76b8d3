// Package workflow drives a debugging session through its phases with
// validated, gated transitions. Phases run strictly in sequence:
//
//	investigation -> implementation -> documentation -> verification -> done
//
// with blocked as a terminal error state reachable from anywhere. A failed
// verification loops the session back to implementation for another fix
// iteration, bounded by the retry budget. The package also owns the
// Session aggregate and its on-disk persistence.
package workflow
