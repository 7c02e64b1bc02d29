package testing

import "github.com/imamik/nodeseed/internal/cloud"

// LegacyImages returns a small image catalog with an old-style naming
// scheme, including two images sharing a name.
func LegacyImages() []cloud.Image {
	return []cloud.Image{
		{ID: "1", Name: "ubuntu-12.04", Description: "Ubuntu 12.04 LTS", Architecture: "x86"},
		{ID: "2", Name: "ubuntu-22.04", Description: "Ubuntu 22.04 LTS", Architecture: "x86"},
		{ID: "3", Name: "debian-12", Description: "Debian 12", Architecture: "x86"},
		{ID: "4", Name: "centos", Description: "CentOS 6", Architecture: "x86"},
		{ID: "5", Name: "centos", Description: "CentOS 7", Architecture: "x86"},
	}
}

// LegacySizes returns a size catalog matching LegacyImages.
func LegacySizes() []cloud.Size {
	return []cloud.Size{
		{ID: "10", Name: "m1.small", Cores: 1, MemoryGB: 2, DiskGB: 20, Architecture: "x86"},
		{ID: "11", Name: "m1.medium", Cores: 2, MemoryGB: 4, DiskGB: 40, Architecture: "x86"},
		{ID: "12", Name: "m1.large", Cores: 4, MemoryGB: 8, DiskGB: 80, Architecture: "x86"},
	}
}
