package pipeline

// State is a stage of a verification run.
type State string

const (
	StateInit         State = "init"
	StateAuthenticate State = "authenticate"
	StateDownload     State = "download"
	StateParse        State = "parse"
	StateResearch     State = "research"
	StateWrite        State = "write"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// transitions lists the states reachable from each state.
var transitions = map[State][]State{
	StateInit:         {StateAuthenticate},
	StateAuthenticate: {StateDownload, StateFailed},
	StateDownload:     {StateParse, StateFailed},
	StateParse:        {StateResearch, StateFailed},
	StateResearch:     {StateWrite, StateFailed},
	StateWrite:        {StateDone, StateFailed},
}

// CanTransition reports whether a run may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

type machine struct {
	current State
	// last is the state before current.
	last     State
	onChange func(State)
}

func newMachine(onChange func(State)) *machine {
	m := &machine{current: StateInit, onChange: onChange}
	onChange(StateInit)
	return m
}

func (m *machine) enter(s State) {
	if !CanTransition(m.current, s) {
		panic("pipeline: illegal transition " + string(m.current) + " -> " + string(s))
	}
	m.last = m.current
	m.current = s
	m.onChange(s)
}

func (m *machine) fail() {
	m.enter(StateFailed)
}
