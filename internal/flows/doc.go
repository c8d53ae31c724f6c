// Package flows holds the function-shaped orchestrators behind the engine's
// token operations (refresh, logout, session listing).
//
// Each Run* function takes a dependency struct and returns a result value that
// classifies failures; the engine maps those to public errors, audit events and
// metrics. Flows hold no state and do not import the root package.
package flows
