// Package analysis provides chaos and dynamics analysis tools built on the
// integrators, the variational equations and the dense trajectory output:
//
//   - [LyapunovExponent]: largest Lyapunov exponent from the tangent flow
//   - [LyapunovSpectrum]: full spectrum by repeated QR orthonormalization
//   - [BifurcationDiagram]: parameter sweep recording local maxima
//   - [GeneratePhasePortrait]: 2D projection of a trajectory
//   - [GeneratePoincareSection]: crossings located on the dense output
//   - [PowerSpectrum]: amplitude spectrum of sampled data
//
// # Chaos Detection
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(ctx, sys, factory, y0, 1.0, 200)
//	if err == nil && lambda > 0 {
//	    // System is chaotic
//	}
package analysis
