package reading

import (
	"regexp"
	"strconv"
)

// statusLineRe matches one full status line, e.g.
//
//	[O2Ring 0098] SpO2  96%, HR  99 bpm, Perfusion Idx  34, motion   1, batt  100%
var statusLineRe = regexp.MustCompile(
	`^\[O2Ring[ \t]+([A-Za-z0-9]+)\][ \t]+` +
		`SpO2[ \t]+(\d+)%,[ \t]+` +
		`HR[ \t]+(\d+)[ \t]+bpm,[ \t]+` +
		`Perfusion Idx[ \t]+(\d+),[ \t]+` +
		`motion[ \t]+(\d+),[ \t]+` +
		`batt[ \t]+(\d+)%$`)

var deviceIDRe = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidDeviceID reports whether id can appear in a status line.
func ValidDeviceID(id string) bool {
	return deviceIDRe.MatchString(id)
}

// ParseFailure reports a line that did not match the status line format.
type ParseFailure struct {
	Line string
}

func (e *ParseFailure) Error() string {
	return "unrecognised status line: " + strconv.Quote(e.Line)
}

// ParseLine parses a status line. Any mismatch returns a *ParseFailure and a
// zero Reading.
func ParseLine(line string) (Reading, error) {
	m := statusLineRe.FindStringSubmatch(line)
	if m == nil {
		return Reading{}, &ParseFailure{Line: line}
	}

	var vals [5]int
	for i := range vals {
		v, err := strconv.Atoi(m[i+2])
		if err != nil {
			return Reading{}, &ParseFailure{Line: line}
		}
		vals[i] = v
	}

	return Reading{
		DeviceID:       m[1],
		SpO2:           vals[0],
		HeartRate:      vals[1],
		PerfusionIndex: vals[2],
		Motion:         vals[3],
		BatteryPercent: vals[4],
	}, nil
}

// Parse is ParseLine reduced to a match flag.
func Parse(line string) (Reading, bool) {
	r, err := ParseLine(line)
	return r, err == nil
}
