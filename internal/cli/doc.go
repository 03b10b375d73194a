// Package cli wires the cobra command tree: install, add, remove, list,
// init, config, and version. Commands load configuration once, build an
// explicit config.Context, and hand it to the installer; no core package
// reads global state.
package cli
