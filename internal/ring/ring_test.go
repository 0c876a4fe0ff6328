package ring

import "testing"

func TestPushPopRoundTrip(t *testing.T) {
	b := New(16)
	in := []float32{1, 2, 3, 4}
	if n := b.Push(in); n != len(in) {
		t.Fatalf("Push() = %d, want %d", n, len(in))
	}

	out := make([]float32, 4)
	if n := b.Pop(out); n != 4 {
		t.Fatalf("Pop() = %d, want 4", n)
	}
	for i, v := range in {
		if out[i] != v {
			t.Errorf("out[%d] = %v, want %v", i, out[i], v)
		}
	}
}

func TestPopUnderfillReturnsShortCount(t *testing.T) {
	b := New(minCapacity)
	b.Push([]float32{1, 2})

	out := make([]float32, 10)
	n := b.Pop(out)
	if n != 2 {
		t.Fatalf("Pop() = %d, want 2", n)
	}
}

func TestOverflowDropsOldestCallAndCounts(t *testing.T) {
	b := New(8) // rounds up to minCapacity
	capN := minCapacity

	full := make([]float32, capN)
	for i := range full {
		full[i] = float32(i)
	}
	if n := b.Push(full); n != capN {
		t.Fatalf("Push(full) = %d, want %d", n, capN)
	}

	overflow := []float32{9001, 9002, 9003}
	n := b.Push(overflow)
	if n != len(overflow) {
		t.Fatalf("Push(overflow) = %d, want %d (newest samples always accepted)", n, len(overflow))
	}
	if got := b.Dropped(); got != uint64(len(overflow)) {
		t.Fatalf("Dropped() = %d, want %d (oldest buffered samples evicted)", got, len(overflow))
	}

	out := make([]float32, capN)
	got := b.Pop(out)
	if got != capN {
		t.Fatalf("Pop() = %d, want %d", got, capN)
	}
	// The oldest len(overflow) samples of the original full buffer were
	// evicted, so the surviving prefix starts at that offset and the
	// newest samples (the overflow) land at the tail.
	for i := 0; i < capN-len(overflow); i++ {
		want := full[i+len(overflow)]
		if out[i] != want {
			t.Fatalf("out[%d] = %v, want %v (survivor of original buffer)", i, out[i], want)
		}
	}
	for i, want := range overflow {
		idx := capN - len(overflow) + i
		if out[idx] != want {
			t.Fatalf("out[%d] = %v, want %v (newest overflow sample)", idx, out[idx], want)
		}
	}
}

func TestAccountingInvariant(t *testing.T) {
	// total pushed - total popped - occupancy == total dropped
	b := New(minCapacity)
	var pushed, popped uint64

	for round := 0; round < 5; round++ {
		chunk := make([]float32, minCapacity/2)
		n := b.Push(chunk)
		pushed += uint64(n)

		out := make([]float32, minCapacity/4)
		m := b.Pop(out)
		popped += uint64(m)
	}

	occupancy := uint64(b.AvailableRead())
	dropped := b.Dropped()

	if pushed-popped-occupancy != dropped {
		t.Fatalf("invariant violated: pushed=%d popped=%d occupancy=%d dropped=%d",
			pushed, popped, occupancy, dropped)
	}
}

func TestAvailableReadWrite(t *testing.T) {
	b := New(minCapacity)
	if got := b.AvailableWrite(); got != minCapacity {
		t.Fatalf("AvailableWrite() = %d, want %d", got, minCapacity)
	}
	b.Push(make([]float32, 100))
	if got := b.AvailableRead(); got != 100 {
		t.Fatalf("AvailableRead() = %d, want 100", got)
	}
	if got := b.AvailableWrite(); got != minCapacity-100 {
		t.Fatalf("AvailableWrite() = %d, want %d", got, minCapacity-100)
	}
}

func TestReset(t *testing.T) {
	b := New(minCapacity)
	b.Push([]float32{1, 2, 3})
	b.Reset()
	if got := b.AvailableRead(); got != 0 {
		t.Fatalf("AvailableRead() after Reset = %d, want 0", got)
	}
}

func TestCapacityForEnforcesFloor(t *testing.T) {
	if got := CapacityFor(64, 2); got != minCapacity {
		t.Fatalf("CapacityFor(64, 2) = %d, want %d", got, minCapacity)
	}
	if got := CapacityFor(4096, 2); got != 4*4096*2 {
		t.Fatalf("CapacityFor(4096, 2) = %d, want %d", got, 4*4096*2)
	}
}
