// internal/resolve/snmp.go - SNMP system-group query
package resolve

import (
	"context"
	"strings"

	"github.com/gosnmp/gosnmp"
)

const (
	oidSysDescr   = ".1.3.6.1.2.1.1.1.0"
	oidSysContact = ".1.3.6.1.2.1.1.4.0"
	oidSysName    = ".1.3.6.1.2.1.1.5.0"
)

type SNMPClient struct {
	community string
}

func NewSNMPClient(community string) *SNMPClient {
	if community == "" {
		community = "public"
	}
	return &SNMPClient{community: community}
}

// Query issues a single GET for sysName/sysDescr/sysContact. Any failure
// means "unavailable", never an error. The caller gates this on port 161.
func (c *SNMPClient) Query(ctx context.Context, ip string) (SNMPInfo, bool) {
	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: c.community,
		Version:   gosnmp.Version2c,
		Timeout:   SNMPTimeout,
		Retries:   0,
		Context:   ctx,
	}

	if err := client.Connect(); err != nil {
		return SNMPInfo{}, false
	}
	defer client.Conn.Close()

	result, err := client.Get([]string{oidSysName, oidSysDescr, oidSysContact})
	if err != nil {
		return SNMPInfo{}, false
	}

	var info SNMPInfo
	for _, variable := range result.Variables {
		value := pduString(variable)
		if value == "" {
			continue
		}
		switch variable.Name {
		case oidSysName:
			info.SysName = value
		case oidSysDescr:
			info.SysDescr = value
		case oidSysContact:
			info.SysContact = value
		}
	}

	if info.SysName == "" && info.SysDescr == "" && info.SysContact == "" {
		return SNMPInfo{}, false
	}
	return info, true
}

func pduString(pdu gosnmp.SnmpPDU) string {
	switch pdu.Type {
	case gosnmp.OctetString:
		if b, ok := pdu.Value.([]byte); ok {
			return strings.TrimSpace(string(b))
		}
	}
	return ""
}
