package mempool

import "testing"

func TestPushAndDrainFIFO(t *testing.T) {
	m := New()
	m.PushRaw([]byte("a"))
	m.PushRaw([]byte("b"))
	m.PushRaw([]byte("c"))

	if got := m.Len(); got != 3 {
		t.Fatalf("len = %d, want 3", got)
	}

	drained := m.Drain(2)
	if len(drained) != 2 {
		t.Fatalf("drained = %d, want 2", len(drained))
	}
	if string(drained[0]) != "a" || string(drained[1]) != "b" {
		t.Fatalf("unexpected drain order: %v", drained)
	}
	if got := m.Len(); got != 1 {
		t.Fatalf("len after drain = %d, want 1", got)
	}
}

func TestDrainMoreThanAvailable(t *testing.T) {
	m := New()
	m.PushRaw([]byte("x"))

	drained := m.Drain(10)
	if len(drained) != 1 {
		t.Fatalf("drained = %d, want 1", len(drained))
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty mempool after draining all")
	}
}

func TestDrainUnlimited(t *testing.T) {
	m := New()
	m.PushRaw([]byte("1"))
	m.PushRaw([]byte("2"))

	drained := m.Drain(0)
	if len(drained) != 2 {
		t.Fatalf("drained = %d, want 2", len(drained))
	}
}

func TestPushRawCopiesBytes(t *testing.T) {
	m := New()
	b := []byte("mutate-me")
	m.PushRaw(b)
	b[0] = 'X'

	drained := m.Drain(1)
	if string(drained[0]) != "mutate-me" {
		t.Fatalf("mempool held a reference instead of a copy: got %q", drained[0])
	}
}
