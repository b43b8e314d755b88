// Package viz renders CLI output: lipgloss styles for headings and solver
// status, asciigraph line plots of stored series, and sparklines for
// error-versus-step tables.
package viz
