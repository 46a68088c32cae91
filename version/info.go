package version

import "fmt"

type Version struct {
	Major, Minor, Patch int
}

func (v *Version) String() string {
	return fmt.Sprintf("%v.%v.%v", v.Major, v.Minor, v.Patch)
}

type Info struct {
	Name       string
	Version    Version
	Vendor     string
	SupportURL string
}

func (info Info) String() string {
	return fmt.Sprintf("%v %v (%v)", info.Name, info.Version.String(), info.Vendor)
}

// Current describes this build of courier. It is reported on the health endpoint.
var Current = Info{
	Name:       "courier",
	Version:    Version{Major: 0, Minor: 4, Patch: 0},
	Vendor:     "inboxkit",
	SupportURL: "https://github.com/inboxkit/courier/issues",
}
