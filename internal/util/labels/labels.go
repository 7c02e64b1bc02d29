package labels

import "strings"

// Standard label keys.
const (
	// KeyManagedBy identifies the management system
	KeyManagedBy = "managed-by"

	// KeyTenant scopes servers to a tenant of a shared project
	KeyTenant = "nodeseed/tenant"

	// KeyUser records the account user that created the server
	KeyUser = "nodeseed/user"

	// KeyRun links the server to the workflow run that created it
	KeyRun = "nodeseed/run"
)

// ManagedByNodeseed is the value of KeyManagedBy.
const ManagedByNodeseed = "nodeseed"

// LabelBuilder provides a fluent API for constructing resource labels.
type LabelBuilder struct {
	labels map[string]string
}

// NewLabelBuilder creates a builder with the managed-by label pre-set.
func NewLabelBuilder() *LabelBuilder {
	return &LabelBuilder{
		labels: map[string]string{
			KeyManagedBy: ManagedByNodeseed,
		},
	}
}

// WithTenant adds the tenant label if tenant is non-empty.
func (lb *LabelBuilder) WithTenant(tenant string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyTenant, tenant)
}

// WithUser adds the user label if user is non-empty.
func (lb *LabelBuilder) WithUser(user string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyUser, user)
}

// WithRun adds the run label if runID is non-empty.
func (lb *LabelBuilder) WithRun(runID string) *LabelBuilder {
	return lb.setIfNotEmpty(KeyRun, runID)
}

// Merge adds all labels from extra. Keys owned by nodeseed are not
// overridden.
func (lb *LabelBuilder) Merge(extra map[string]string) *LabelBuilder {
	for k, v := range extra {
		if IsReserved(k) {
			continue
		}
		lb.labels[k] = v
	}
	return lb
}

// Build returns a copy of the labels map.
func (lb *LabelBuilder) Build() map[string]string {
	result := make(map[string]string, len(lb.labels))
	for k, v := range lb.labels {
		result[k] = v
	}
	return result
}

func (lb *LabelBuilder) setIfNotEmpty(key, value string) *LabelBuilder {
	if value != "" {
		lb.labels[key] = value
	}
	return lb
}

// IsReserved reports whether key is set by nodeseed itself.
func IsReserved(key string) bool {
	return key == KeyManagedBy || strings.HasPrefix(key, "nodeseed/")
}

// Selector returns a label selector matching every server nodeseed created,
// narrowed to tenant when it is non-empty.
func Selector(tenant string) string {
	selector := KeyManagedBy + "=" + ManagedByNodeseed
	if tenant != "" {
		selector += "," + KeyTenant + "=" + tenant
	}
	return selector
}
