package machine

import (
	"errors"
	"testing"
)

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"L", Left, false},
		{"r", Right, false},
		{" left ", Left, false},
		{"RIGHT", Right, false},
		{"S", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDirection(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDirection(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnknownDirection) {
				t.Errorf("ParseDirection(%q) error = %v, want ErrUnknownDirection", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseDirection(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseSymbol(t *testing.T) {
	if s, err := ParseSymbol(" a "); err != nil || s != 'a' {
		t.Errorf("ParseSymbol(\" a \") = %q, %v", s, err)
	}
	if s, err := ParseSymbol("é"); err != nil || s != 'é' {
		t.Errorf("ParseSymbol(\"é\") = %q, %v", s, err)
	}
	for _, bad := range []string{"", "ab", "  "} {
		if _, err := ParseSymbol(bad); !errors.Is(err, ErrInvalidSymbol) {
			t.Errorf("ParseSymbol(%q) error = %v, want ErrInvalidSymbol", bad, err)
		}
	}
}

func TestTable_LookupPreservesOrder(t *testing.T) {
	t.Parallel()

	table := NewTable(
		Rule{From: "q0", Read: 'a', Next: "q1", Write: 'x', Move: Right},
		Rule{From: "q0", Read: 'b', Next: "q0", Write: 'b', Move: Left},
		Rule{From: "q0", Read: 'a', Next: "q2", Write: 'y', Move: Left},
	)

	got := table.Lookup("q0", 'a')
	if len(got) != 2 {
		t.Fatalf("Lookup() returned %d actions, want 2", len(got))
	}
	if got[0].Next != "q1" || got[1].Next != "q2" {
		t.Errorf("Lookup() order = %v, want q1 then q2", got)
	}
	if table.Lookup("q9", 'a') != nil {
		t.Error("Lookup() for a missing key should return nil")
	}
	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	if table.MaxBranching() != 2 {
		t.Errorf("MaxBranching() = %d, want 2", table.MaxBranching())
	}
	if table.IsDeterministic() {
		t.Error("IsDeterministic() = true, want false")
	}
}

func TestTable_Nil(t *testing.T) {
	var table *Table
	if table.Lookup("q0", 'a') != nil {
		t.Error("nil table Lookup() should return nil")
	}
	if table.Len() != 0 || table.Rules() != nil {
		t.Error("nil table should be empty")
	}
}

func TestMachine_IsAccept(t *testing.T) {
	m := &Machine{Start: "q0", Accept: []State{"qa", "qb"}, Reject: "qr"}

	if !m.IsAccept("qb") {
		t.Error("IsAccept(qb) = false, want true")
	}
	if m.IsAccept("qA") {
		t.Error("IsAccept uses exact match")
	}
	if !m.IsReject("qr") || m.IsReject("qa") {
		t.Error("IsReject mismatch")
	}
}

func TestMachine_Check(t *testing.T) {
	if err := (&Machine{Reject: "r"}).Check(); !errors.Is(err, ErrMissingStart) {
		t.Errorf("Check() = %v, want ErrMissingStart", err)
	}
	if err := (&Machine{Start: "s"}).Check(); !errors.Is(err, ErrMissingReject) {
		t.Errorf("Check() = %v, want ErrMissingReject", err)
	}
	if err := (&Machine{Start: "s", Reject: "r"}).Check(); err != nil {
		t.Errorf("Check() = %v, want nil", err)
	}
}

func TestMachine_Fingerprint(t *testing.T) {
	rules := []Rule{{From: "q0", Read: '1', Next: "q1", Write: '1', Move: Right}}
	a := &Machine{Name: "a", Start: "q0", Accept: []State{"x", "y"}, Reject: "r", Table: NewTable(rules...)}
	b := &Machine{Name: "b", Start: "q0", Accept: []State{"y", "x"}, Reject: "r", Table: NewTable(rules...)}
	c := &Machine{Name: "a", Start: "q0", Accept: []State{"x", "y"}, Reject: "r2", Table: NewTable(rules...)}

	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should ignore name and accept order")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint should depend on the reject state")
	}
	if len(a.Fingerprint()) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(a.Fingerprint()))
	}
}

func TestMachine_Validate(t *testing.T) {
	t.Run("consistent machine", func(t *testing.T) {
		m := &Machine{
			States:        []State{"q0", "qa", "qr"},
			InputAlphabet: []Symbol{'0'},
			TapeAlphabet:  []Symbol{'0', '_'},
			Start:         "q0",
			Accept:        []State{"qa"},
			Reject:        "qr",
			Table:         NewTable(Rule{From: "q0", Read: '0', Next: "qa", Write: '0', Move: Right}),
		}
		if errs := m.Validate(); len(errs) != 0 {
			t.Errorf("Validate() = %v, want no errors", errs)
		}
	})

	t.Run("undeclared state and symbol", func(t *testing.T) {
		m := &Machine{
			States:       []State{"q0", "qa", "qr"},
			TapeAlphabet: []Symbol{'0'},
			Start:        "q0",
			Accept:       []State{"qa"},
			Reject:       "qr",
			Table:        NewTable(Rule{From: "q0", Read: '1', Next: "q9", Write: '0', Move: Right}),
		}
		errs := m.Validate()
		if len(errs) != 2 {
			t.Fatalf("Validate() returned %d errors, want 2: %v", len(errs), errs)
		}
		for _, err := range errs {
			if !errors.Is(err, ErrInconsistentMachine) {
				t.Errorf("error %v should wrap ErrInconsistentMachine", err)
			}
		}

		var undeclared *UndeclaredStateError
		if !errors.As(errs[0], &undeclared) || undeclared.State != "q9" || undeclared.Rule != 1 {
			t.Errorf("errs[0] = %v, want undeclared q9 in rule 1", errs[0])
		}
		if got := errs[0].Error(); got != `rule 1: inconsistent machine description: state "q9" is not declared` {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("undeclared sets are not checked", func(t *testing.T) {
		m := &Machine{
			Start:  "q0",
			Reject: "qr",
			Table:  NewTable(Rule{From: "q0", Read: 'z', Next: "q7", Write: 'y', Move: Left}),
		}
		if errs := m.Validate(); len(errs) != 0 {
			t.Errorf("Validate() = %v, want no errors", errs)
		}
	})
}
