// Package viz provides terminal visualization of finished integrations.
//
//   - [Inspector]: Bubble Tea model scrubbing through a trajectory's dense
//     output, showing a phase plot, interpolated state and derivatives
//   - [Canvas]: Braille-based pixel canvas
//   - [Styles] built from one of the [Themes]
//
// # Key Bindings
//
//	←/→   - Move the cursor by 1% of the time span
//	,/.   - Move the cursor by 0.1%
//	g/G   - Jump to the initial/final time
//	x/y   - Cycle the plotted components
//	t     - Cycle color themes
//	q     - Quit
package viz
