package attendance

import "fmt"

// State is the attendance state recorded for one occurrence.
type State int

const (
	Present State = iota + 1
	ExcusedAbsence
)

func (s State) String() string {
	switch s {
	case Present:
		return "PRESENT"
	case ExcusedAbsence:
		return "EXCUSED_ABSENCE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState is the inverse of String.
func ParseState(s string) (State, error) {
	switch s {
	case "PRESENT":
		return Present, nil
	case "EXCUSED_ABSENCE":
		return ExcusedAbsence, nil
	}
	return 0, fmt.Errorf("unknown attendance state %q", s)
}

func (s State) MarshalText() ([]byte, error) {
	if s != Present && s != ExcusedAbsence {
		return nil, fmt.Errorf("invalid attendance state %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
