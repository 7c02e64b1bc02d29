// Package testing provides fakes, builders, and fixtures shared by the
// nodeseed test suites.
//
//   - FakeProvider: scripted in-memory compute driver
//   - FakeConnector: scripted remote shell
//   - ConfigBuilder: fluent builder for test configurations
//   - MockObjectStore: testify mock for the report archive
//
// Usage:
//
//	provider := testing.NewFakeProvider(testing.LegacyImages(), testing.LegacySizes())
//	provider.Address = "203.0.113.5"
//	provider.AssignAfter = 2
//
//	cfg := testing.NewConfigBuilder().
//	    WithVM("web1", "ubuntu-12.04", "m1.small").
//	    WithMaxPolls(5).
//	    Build()
package testing
