package naming

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// hostnameRe matches names the provider accepts as server names.
var hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9.-]{0,61}[a-zA-Z0-9])?$`)

// IsHostname reports whether name is usable as a server name.
func IsHostname(name string) bool {
	return hostnameRe.MatchString(name)
}

// ReportKey returns the object key of an archived report:
// {prefix}/{node}/{runID}.yaml.
func ReportKey(prefix, node, runID string) string {
	return path.Join(strings.Trim(prefix, "/"), node, runID+".yaml")
}

// JournalFile returns the journal file of a node inside dir. Path
// separators in node are replaced so the file never leaves dir.
func JournalFile(dir, node string) string {
	node = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator {
			return '_'
		}
		return r
	}, node)
	return filepath.Join(dir, node+".jsonl")
}
