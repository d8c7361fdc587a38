package uhfmac

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
)

// Set at build time via `-ldflags "-X 'github.com/ualbertasat/uhfmac/src.UHFMAC_VERSION=X'"`
var UHFMAC_VERSION string

type buildVersion struct {
	Tool      string
	Version   string
	Revision  string
	Time      string
	GoVersion string
}

// readBuildVersion takes what it can from the version stamped in at link
// time and from the VCS settings the go command records.
func readBuildVersion(tool string, bi *debug.BuildInfo) buildVersion {
	var v = buildVersion{
		Tool:      tool,
		Version:   UHFMAC_VERSION,
		Revision:  "unknown",
		Time:      "unknown",
		GoVersion: "unknown",
	}

	if v.Version == "" && bi != nil {
		v.Version = bi.Main.Version
	}

	if v.Version == "" {
		v.Version = "unknown"
	}

	if bi == nil {
		return v
	}

	v.GoVersion = bi.GoVersion

	var modified = false

	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs.revision":
			v.Revision = bs.Value
		case "vcs.time":
			v.Time = bs.Value
		case "vcs.modified":
			modified, _ = strconv.ParseBool(bs.Value)
		}
	}

	if modified {
		v.Revision += "-dirty"
	}

	return v
}

func (v buildVersion) String() string {
	return fmt.Sprintf("%s - Version %s (revision %s, built at %s, %s)", v.Tool, v.Version, v.Revision, v.Time, v.GoVersion)
}

func printVersion(tool string) {
	var bi, _ = debug.ReadBuildInfo()

	fmt.Println(readBuildVersion(tool, bi))

	var schemes []string
	for _, s := range ErrorCorrectionSchemes() {
		schemes = append(schemes, s.String())
	}

	fmt.Printf("Error correction: %s\n", strings.Join(schemes, ", "))
}
