package snmpprobe

import (
	"strings"
)

// Classifications produced by Classify. They match the values the
// inventory sync writes, so default mappings apply to probed devices too.
const (
	ClassSwitch    = "switch"
	ClassWireless  = "wireless"
	ClassAppliance = "appliance"
	ClassCamera    = "camera"
	ClassRouter    = "router"
	ClassSensor    = "sensor"
)

// keyword rules are checked in order against the lowercased sysDescr.
var keywordRules = []struct {
	keywords []string
	class    string
}{
	{[]string{"camera", "network video", "ip cam"}, ClassCamera},
	{[]string{"sensor", "environmental monitor"}, ClassSensor},
	{[]string{"access point", "wireless", "wlan", "802.11"}, ClassWireless},
	{[]string{"firewall", "security appliance", "fortigate", "pan-os", "utm"}, ClassAppliance},
	{[]string{"switch", "catalyst", "nexus", "procurve", "edgeswitch"}, ClassSwitch},
	{[]string{"router", "routeros", "edgerouter", "junos"}, ClassRouter},
}

// enterprise number prefixes for vendors whose products fall into a single
// class.
var vendorRules = map[string]string{
	".1.3.6.1.4.1.368.":   ClassCamera,    // Axis
	".1.3.6.1.4.1.12356.": ClassAppliance, // Fortinet
	".1.3.6.1.4.1.25461.": ClassAppliance, // Palo Alto
	".1.3.6.1.4.1.14823.": ClassWireless,  // Aruba
	".1.3.6.1.4.1.14988.": ClassRouter,    // MikroTik
}

// Classify guesses a classification from the system group. It returns ""
// when nothing is recognized, which matching treats as unclassified.
func Classify(info *SystemInfo) string {
	if info == nil {
		return ""
	}
	descr := strings.ToLower(info.Description)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(descr, kw) {
				return rule.class
			}
		}
	}

	oid := info.ObjectID
	if oid != "" && !strings.HasPrefix(oid, ".") {
		oid = "." + oid
	}
	for prefix, class := range vendorRules {
		if strings.HasPrefix(oid+".", prefix) || strings.HasPrefix(oid, prefix) {
			return class
		}
	}
	return ""
}
