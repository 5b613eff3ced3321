// Package expression defines the contract between the instrument pipeline and
// the rule language embedded in instrument definitions. DisplayIf conditions,
// RequireResponse rules and calc formulas are all evaluated through the
// Evaluator interface; the pipeline only depends on the two readiness failure
// kinds (ErrNullVariable, ErrUndefinedVariable) being distinguishable from any
// other evaluation error. The script subpackage ships the default evaluator.
package expression
