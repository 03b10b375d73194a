// Package updater checks the registry for a newer CLI release and prints a
// non-blocking startup banner. It never downloads or replaces the binary.
package updater
