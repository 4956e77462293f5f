package device

import "testing"

func probe(cuda, mps bool) Probe {
	return Probe{
		HasCUDA: func() bool { return cuda },
		HasMPS:  func() bool { return mps },
	}
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name       string
		cuda, mps  bool
		preference string
		want       string
	}{
		{"auto prefers cuda", true, true, "auto", CUDA},
		{"auto mps", false, true, "auto", MPS},
		{"auto cpu", false, false, "", CPU},
		{"explicit cpu", true, false, "cpu", CPU},
		{"explicit mps available", true, true, "MPS", MPS},
		{"cuda unavailable", false, false, "cuda", CPU},
		{"unknown", true, false, "tpu", CUDA},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := probe(tt.cuda, tt.mps).Select(tt.preference); got != tt.want {
				t.Errorf("Select(%q) = %q, want %q", tt.preference, got, tt.want)
			}
		})
	}
}

func TestAvailableAlwaysHasCPU(t *testing.T) {
	avail := Probe{}.Available()
	if len(avail) != 1 || avail[0] != CPU {
		t.Errorf("Available() = %v, want [cpu]", avail)
	}
}
