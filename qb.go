// Package qb is a model-driven, multi-dialect SQL migration toolkit.
package qb

// Version is the current qb release.
const Version = "0.1.0"
