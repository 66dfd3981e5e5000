// Package sim assembles a runnable engine from a validated configuration.
//
// Build creates the setting, the initial tree state, one pair handler per
// pair of particles and the pseudo handlers, all drawing from one seeded
// PCG source. The engine consumes that source in a fixed order, so a seed
// reproduces a run exactly.
package sim
