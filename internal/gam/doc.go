// Package gam fits Gaussian penalized additive models with smoothing
// parameters chosen by restricted maximum likelihood.
//
// A [Model] is a list of [Term] values. Each term contributes columns to
// the design matrix and one or more quadratic penalties over them:
//
//   - [Smooth]: cubic B-spline of time with a difference penalty
//   - [TensorMRF]: one coefficient per (time level, species) cell, penalized
//     by a Kronecker sum of a time MRF and a species penalty
//
// # Fitting
//
// The scale parameter is profiled out of the REML criterion, leaving one
// log smoothing parameter per penalty. Those are seeded by a coarse grid
// and refined with Nelder-Mead:
//
//	model := gam.NewModel("phylo", smooth, tensor)
//	fit, err := model.Fit(ctx, data)
//	pred, err := fit.Predict(data)
//
// Rows with a missing response or zero weight never enter the likelihood,
// but every factor level keeps its coefficient, so [Fit.Predict] can
// forecast levels that had no data.
package gam
