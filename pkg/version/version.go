// Package version provides eventstream RPC protocol version parsing and
// compatibility checks for the connect handshake.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
)

// Current is the protocol version sent in the connect message.
const Current = "0.1.0"

// ProtocolVersion is a parsed "major.minor.patch" version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
	Patch uint16
}

// Parse parses a "major.minor.patch" version string.
func Parse(s string) (ProtocolVersion, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return ProtocolVersion{}, fmt.Errorf("%w: invalid version %q: expected major.minor.patch", ggerr.Parse, s)
	}

	var nums [3]uint16
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return ProtocolVersion{}, fmt.Errorf("%w: invalid version %q: bad component %q", ggerr.Parse, s, p)
		}
		nums[i] = uint16(n)
	}
	return ProtocolVersion{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ProtocolVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version as "major.minor.patch".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compatible reports whether a peer speaking other can talk to v. Major
// versions must match; while the major version is 0 the minor must match too.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	if v.Major != other.Major {
		return false
	}
	if v.Major == 0 {
		return v.Minor == other.Minor
	}
	return true
}

// Check validates a peer's version string against Current. An empty string
// is accepted, since older clients omit the header.
func Check(peer string) error {
	if peer == "" {
		return nil
	}
	pv, err := Parse(peer)
	if err != nil {
		return err
	}
	if !MustParse(Current).Compatible(pv) {
		return fmt.Errorf("%w: protocol version %s, want %s", ggerr.Unsupported, pv, Current)
	}
	return nil
}
