// Package viz renders runs in the terminal: a Braille [Canvas] for the
// cluster, asciigraph line plots of COLVAR columns, a colored heatmap of a
// free-energy grid, and a Bubble Tea [Model] that follows a run live.
//
// # Key Bindings
//
//	Q, Ctrl+C - Stop the run
//	Space     - Freeze the display
package viz
