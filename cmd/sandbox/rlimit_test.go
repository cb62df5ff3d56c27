package main

import "testing"

func TestCPUSecondsRoundsUpWithSlack(t *testing.T) {
	// 2_000_000us time limit + 1_500_000us slack = 3_500_000us -> 4s (rounded up).
	got := cpuSecondsFor(2_000_000)
	if got != 4 {
		t.Fatalf("cpu seconds = %d, want 4", got)
	}
}

func TestMemorySlackAdded(t *testing.T) {
	got := uint64(256<<20) + rlimitMemorySlackBytes
	want := uint64(256<<20) + uint64(64<<20)
	if got != want {
		t.Fatalf("mem limit = %d, want %d", got, want)
	}
}
