// Package potential defines pair potentials and bounds on their derivatives.
//
// A separation is always target minus reference, already corrected for
// periodic boundaries. Gradients and derivatives are taken with respect to
// the reference position, so a positive derivative along the velocity of the
// reference unit means the motion climbs the potential.
//
// Potentials that can be inverted analytically implement InvertiblePotential
// and are used by the closed-form two-leaf event handler. All others are used
// through an Estimator by the bounding handlers.
package potential
