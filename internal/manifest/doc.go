// Package manifest reads and mutates the project manifest (agents.toml):
// the project's identity plus its declared dependency version ranges.
// In-place edits preserve surrounding formatting and comments so the file
// stays human-diffable across install/add/remove runs.
package manifest
