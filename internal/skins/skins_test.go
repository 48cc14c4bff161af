package skins

import "testing"

func TestRegistryResolve(t *testing.T) {
	t.Parallel()

	r := NewRegistry("", map[string]string{Mandarin: " 4242 "})

	tests := []struct {
		in   string
		want string
	}{
		{in: "frog", want: Frog},
		{in: " Mandarin ", want: Mandarin},
		{in: "unicorn", want: Frog},
		{in: "", want: Frog},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			if got := r.Resolve(tt.in).ID; got != tt.want {
				t.Fatalf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	m, ok := r.Lookup(Mandarin)
	if !ok || !m.Premium || m.VariantID != "4242" {
		t.Fatalf("mandarin = %+v, want premium with variant 4242", m)
	}
	if f, _ := r.Lookup(Frog); f.Premium {
		t.Fatalf("frog must be free")
	}
}

func TestRegistryDefaultOverride(t *testing.T) {
	t.Parallel()

	if got := NewRegistry("mandarin", nil).Resolve("nope").ID; got != Mandarin {
		t.Fatalf("default = %q, want %q", got, Mandarin)
	}
	if got := NewRegistry("ghost", nil).Default().ID; got != Frog {
		t.Fatalf("unknown default = %q, want %q", got, Frog)
	}
}

func TestRegistryOrderAndNext(t *testing.T) {
	t.Parallel()

	r := NewRegistry("", nil)
	ids := r.IDs()
	if len(ids) != 2 || ids[0] != Frog || ids[1] != Mandarin {
		t.Fatalf("IDs = %v", ids)
	}
	if got := r.Next(Frog).ID; got != Mandarin {
		t.Fatalf("Next(frog) = %q", got)
	}
	if got := r.Next(Mandarin).ID; got != Frog {
		t.Fatalf("Next(mandarin) = %q", got)
	}
	if p := r.Premium(); len(p) != 1 || p[0].ID != Mandarin {
		t.Fatalf("Premium = %+v", p)
	}
}

func TestSkinFrame(t *testing.T) {
	t.Parallel()

	s := NewRegistry("", nil).Default()
	if got := s.Frame(false); &got[0] != &s.Normal[0] {
		t.Fatalf("rest frame is not Normal")
	}
	if got := s.Frame(true); &got[0] != &s.Shaken[0] {
		t.Fatalf("shaking frame is not Shaken")
	}
	if (Skin{Normal: []string{"x"}}).Frame(true)[0] != "x" {
		t.Fatalf("missing shaken frame should fall back to Normal")
	}
}
