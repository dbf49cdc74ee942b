package pv

import "fmt"

// Status is the Channel Access alarm condition.
type Status uint16

const (
	StatusNoAlarm Status = iota
	StatusRead
	StatusWrite
	StatusHiHi
	StatusHigh
	StatusLoLo
	StatusLow
	StatusState
	StatusCOS
	StatusComm
	StatusTimeout
	StatusHWLimit
	StatusCalc
	StatusScan
	StatusLink
	StatusSoft
	StatusBadSub
	StatusUDF
	StatusDisable
	StatusSimm
	StatusReadAccess
	StatusWriteAccess
)

var statusNames = [...]string{
	"NO_ALARM", "READ", "WRITE", "HIHI", "HIGH", "LOLO", "LOW", "STATE",
	"COS", "COMM", "TIMEOUT", "HWLIMIT", "CALC", "SCAN", "LINK", "SOFT",
	"BAD_SUB", "UDF", "DISABLE", "SIMM", "READ_ACCESS", "WRITE_ACCESS",
}

// Valid reports whether s is a known alarm condition.
func (s Status) Valid() bool { return int(s) < len(statusNames) }

// String returns the condition name.
func (s Status) String() string {
	if s.Valid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint16(s))
}

// ParseStatus parses a condition name such as "HIHI".
func ParseStatus(name string) (Status, error) {
	for i, n := range statusNames {
		if n == name {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown status %q", ErrInvalidAttribute, name)
}

// Severity ranks the urgency of an alarm.
type Severity uint16

const (
	SeverityNoAlarm Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityInvalid
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool { return s <= SeverityInvalid }

// String returns the severity name.
func (s Severity) String() string {
	switch s {
	case SeverityNoAlarm:
		return "NO_ALARM"
	case SeverityMinor:
		return "MINOR"
	case SeverityMajor:
		return "MAJOR"
	case SeverityInvalid:
		return "INVALID"
	default:
		return fmt.Sprintf("Severity(%d)", uint16(s))
	}
}
