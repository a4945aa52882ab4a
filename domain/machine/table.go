package machine

// Key indexes the transition table.
type Key struct {
	State  State
	Symbol Symbol
}

// Action is one possible outcome of a transition.
type Action struct {
	Next  State
	Write Symbol
	Move  Direction
}

// Rule is a single transition record as it appears in a machine file.
type Rule struct {
	From  State
	Read  Symbol
	Next  State
	Write Symbol
	Move  Direction
}

// Key returns the table key of the rule.
func (r Rule) Key() Key {
	return Key{State: r.From, Symbol: r.Read}
}

// Action returns the outcome half of the rule.
func (r Rule) Action() Action {
	return Action{Next: r.Next, Write: r.Write, Move: r.Move}
}

// Table maps (state, symbol) to an ordered set of actions.
// Several actions under one key are the only source of nondeterminism.
// A Table is built once and is read-only afterwards.
type Table struct {
	actions map[Key][]Action
	rules   []Rule
}

// NewTable creates a table from rules, preserving their order.
func NewTable(rules ...Rule) *Table {
	t := &Table{actions: make(map[Key][]Action, len(rules))}
	for _, r := range rules {
		t.Add(r)
	}
	return t
}

// Add appends a rule. It is intended for use while loading only.
func (t *Table) Add(r Rule) {
	if t.actions == nil {
		t.actions = make(map[Key][]Action)
	}
	k := r.Key()
	t.actions[k] = append(t.actions[k], r.Action())
	t.rules = append(t.rules, r)
}

// Lookup returns the actions for (state, symbol) in definition order.
// The returned slice must not be modified.
func (t *Table) Lookup(state State, symbol Symbol) []Action {
	if t == nil {
		return nil
	}
	return t.actions[Key{State: state, Symbol: symbol}]
}

// Rules returns all rules in definition order.
func (t *Table) Rules() []Rule {
	if t == nil {
		return nil
	}
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Len returns the number of rules.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}

// MaxBranching returns the largest number of actions under a single key.
func (t *Table) MaxBranching() int {
	if t == nil {
		return 0
	}
	max := 0
	for _, acts := range t.actions {
		if len(acts) > max {
			max = len(acts)
		}
	}
	return max
}

// IsDeterministic returns true if no key has more than one action.
func (t *Table) IsDeterministic() bool {
	return t.MaxBranching() <= 1
}
