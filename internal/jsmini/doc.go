// Package jsmini is a small tree-walking interpreter for the subset of
// JavaScript found in player cipher routines: var declarations, function
// expressions and declarations, object and array literals, the usual
// operators, if/for/while/switch/try, and a handful of string, array and
// Math built-ins.
//
// Programs have no access to the host. Every Run starts from a fresh global
// scope holding only the built-ins and the caller's bindings, and is bounded
// by a step budget. Source outside the subset (regex literals, new, this,
// arrow functions, for-in) is rejected with a *SyntaxError rather than
// approximated.
package jsmini
