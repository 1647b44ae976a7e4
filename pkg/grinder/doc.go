// Package grinder defines the types describing the grinder controller. It
// contains:
//
//   - Screen: the menu screen currently shown
//   - DosingState: the steps of the dosing state machine
//   - Status: a synthesized view model returned by HTTP APIs and printed by
//     the CLI
//
// These types are shared across controller, daemon and client code to keep
// JSON contracts consistent.
package grinder
