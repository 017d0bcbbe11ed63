package types

import "fmt"

// Region is a service territory. Routes, properties and technicians are
// partitioned by region for supervisor visibility.
type Region string

const (
	RegionNorth Region = "north"
	RegionMid   Region = "mid"
	RegionSouth Region = "south"
)

// ParseRegion validates a region string
func ParseRegion(s string) (Region, error) {
	switch Region(s) {
	case RegionNorth, RegionMid, RegionSouth:
		return Region(s), nil
	}
	return "", fmt.Errorf("invalid region: %q", s)
}

// String returns the string representation
func (r Region) String() string {
	return string(r)
}
