// Package document converts a graph.Store to and from its persisted form.
//
// The persisted form is a flat list of node records:
//
//	[{"x": 10, "y": 20, "name": "Entry", "description": "...",
//	  "connections": [["Cave", "enter"], ...]}, ...]
//
// JSON is the canonical encoding and the one embedded in exported bundles.
// The same records can also be written as YAML, or as HCL for authors who
// prefer to write stories by hand:
//
//	node "Entry" {
//	  x           = 10
//	  y           = 20
//	  description = "..."
//
//	  connection "Cave" {
//	    label = "enter"
//	  }
//	}
//
// Loading never validates connection targets; dangling edges survive a round
// trip and are reported only when traversed.
package document
