// Package achievements inspects the user achievements table: its column metadata,
// a sample of its rows, and whether a throwaway row can be written to it.
package achievements
