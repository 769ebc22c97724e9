// internal/resolve/netbios.go - NetBIOS name-table queries
package resolve

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
)

// nmblookup -A / nbtstat -A rows look like:
//
//	HOSTNAME        <00> -         B <ACTIVE>
//	WORKGROUP       <00> - <GROUP> B <ACTIVE>
//	USERNAME        <03> -         B <ACTIVE>
var nbtRow = regexp.MustCompile(`^\s*(\S+)\s+<([0-9a-fA-F]{2})>\s+-?\s*(<GROUP>)?`)

// QueryNetBIOS asks the host for its name table and extracts the unique <00>
// computer name, the <03> logged-in user and the <00> GROUP workgroup. The
// caller gates this on port 139/445 being open.
func QueryNetBIOS(ctx context.Context, ip string) (NetBIOSInfo, bool) {
	cmdCtx, cancel := context.WithTimeout(ctx, NetBIOSTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, "nmblookup", "-A", ip).Output()
	if err != nil {
		output, err = exec.CommandContext(cmdCtx, "nbtstat", "-A", ip).Output()
		if err != nil {
			return NetBIOSInfo{}, false
		}
	}

	return ParseNetBIOSOutput(string(output))
}

// ParseNetBIOSOutput parses a name-table listing. Split out from the exec
// path so the parsing rules are testable without samba installed.
func ParseNetBIOSOutput(output string) (NetBIOSInfo, bool) {
	var info NetBIOSInfo

	for _, line := range strings.Split(output, "\n") {
		match := nbtRow.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		name := strings.TrimSpace(match[1])
		suffix := strings.ToLower(match[2])
		group := match[3] != ""

		// The master-browser self-announce pseudo-name is noise.
		if strings.Contains(name, "__MSBROWSE__") {
			continue
		}

		switch {
		case suffix == "00" && group && info.Workgroup == "":
			info.Workgroup = name
		case suffix == "00" && !group && info.Name == "":
			info.Name = name
		case suffix == "03" && !group:
			// The machine announces its own name under <03> too; the
			// logged-in user is the <03> entry that differs from it.
			if name != info.Name {
				info.User = name
			}
		}
	}

	if info.Name == "" && info.User == "" && info.Workgroup == "" {
		return NetBIOSInfo{}, false
	}
	return info, true
}
