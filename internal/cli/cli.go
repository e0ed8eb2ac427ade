// Package cli implements the hirecs command-line interface.
//
// The package provides commands for clustering adjacency files, rendering
// the resulting hierarchy, serving the pipeline over HTTP, and managing the
// artifact cache. The CLI is built using cobra and supports verbose logging
// via the charmbracelet/log library.
//
// # Commands
//
//   - cluster: run hierarchical clustering over a .hig adjacency file
//   - render: draw the hierarchy as a Graphviz DOT or SVG diagram
//   - serve: expose the clustering pipeline over HTTP
//   - cache: manage the artifact cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context so every command shares one configured
// logger.
package cli
