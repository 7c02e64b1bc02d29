// Package naming provides consistent names for the artifacts a workflow
// run leaves behind: archived reports and journal files.
package naming
