// Package setting describes the simulation box and the shape of the particle
// forest.
//
// A Setting is an ordinary value built once by the composition root and
// passed to every component that needs it. There is no package-level state;
// two runs in the same process can use different settings.
package setting
