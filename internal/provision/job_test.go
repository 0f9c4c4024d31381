package provision

import "testing"

func TestProgressPctCreateSequence(t *testing.T) {
	// Six steps map onto the published progress checkpoints.
	want := []int{17, 33, 50, 67, 83, 100}
	for i, w := range want {
		if got := progressPct(i+1, 6); got != w {
			t.Fatalf("progressPct(%d, 6) = %d, want %d", i+1, got, w)
		}
	}
}

func TestProgressPctEdges(t *testing.T) {
	if got := progressPct(0, 6); got != 0 {
		t.Fatalf("progressPct(0, 6) = %d, want 0", got)
	}
	if got := progressPct(3, 0); got != 0 {
		t.Fatalf("progressPct(3, 0) = %d, want 0", got)
	}
	if got := progressPct(1, 3); got != 33 {
		t.Fatalf("progressPct(1, 3) = %d, want 33", got)
	}
	if got := progressPct(2, 3); got != 67 {
		t.Fatalf("progressPct(2, 3) = %d, want 67", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := map[Status]bool{
		StatusQueued:    false,
		StatusRunning:   false,
		StatusCompleted: true,
		StatusFailed:    true,
		StatusCancelled: true,
	}
	for st, want := range cases {
		if got := st.Terminal(); got != want {
			t.Fatalf("%s.Terminal() = %v, want %v", st, got, want)
		}
	}
}

func TestParseJobType(t *testing.T) {
	for raw, want := range map[string]JobType{
		"":          JobCreate,
		"create":    JobCreate,
		"  Update ": JobUpdate,
		"DELETE":    JobDelete,
		"republish": JobRepublish,
	} {
		got, err := ParseJobType(raw)
		if err != nil {
			t.Fatalf("ParseJobType(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseJobType(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseJobType("destroy"); err == nil {
		t.Fatalf("expected error for unknown job type")
	}
}
