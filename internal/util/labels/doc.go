// Package labels builds the label set nodeseed puts on every server it
// creates, and the selector that finds those servers again.
package labels
