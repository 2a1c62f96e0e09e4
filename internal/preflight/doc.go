// Package preflight provides readiness checks for the filesystem paths and
// remote services covercache depends on.
//
// The CLI "covercache preflight" command runs RunAll and renders the results.
// Each check reports its outcome instead of failing the command, so a single
// run shows everything that needs attention.
package preflight
