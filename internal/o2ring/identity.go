package o2ring

import "strings"

// modelIdentityMap maps advertised name prefixes to model names. Longer
// prefixes come first so "O2Ring" wins over "O2".
var modelIdentityMap = []struct {
	prefix string
	name   string
}{
	{"o2ring", "O2Ring"},
	{"o2m", "O2M"},
	{"checkme o2", "Checkme O2"},
	{"sleepo2", "SleepO2"},
	{"wearo2", "WearO2"},
	{"babyo2", "BabyO2"},
	{"kidso2", "KidsO2"},
	{"sleepu", "SleepU"},
	{"oxylink", "Oxylink"},
	{"oxyu", "OxyU"},
}

// ModelName returns the model for an advertised BLE name, or "" when the
// name does not belong to a supported oximeter.
func ModelName(advertised string) string {
	lower := strings.ToLower(strings.TrimSpace(advertised))
	for _, entry := range modelIdentityMap {
		if strings.HasPrefix(lower, entry.prefix) {
			return entry.name
		}
	}
	return ""
}

// DeviceID extracts the id suffix from an advertised name, e.g.
// "O2Ring 0098" gives "0098". Non-alphanumeric characters are dropped so the
// id always fits the status line format.
func DeviceID(advertised string) string {
	fields := strings.Fields(advertised)
	if len(fields) < 2 {
		return ""
	}
	var sb strings.Builder
	for _, r := range fields[len(fields)-1] {
		if r < 128 && (r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
