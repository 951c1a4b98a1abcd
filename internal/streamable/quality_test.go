package streamable

import "testing"

func ranked(ranks ...int) []Streamable {
	list := make([]Streamable, len(ranks))
	for i, r := range ranks {
		list[i] = Streamable{ID: string(rune('a' + i)), Quality: r}
	}
	return list
}

func TestSelect_OddCount(t *testing.T) {
	list := ranked(5, 1, 9)

	tests := []struct {
		q    Quality
		want int
	}{
		{QualityHighest, 9},
		{QualityLowest, 1},
		{QualityMedium, 5},
		{QualityDefault, 5}, // first element
	}
	for _, tt := range tests {
		got, idx, ok := Select(list, tt.q)
		if !ok {
			t.Fatalf("Select(%q) ok = false", tt.q)
		}
		if got.Quality != tt.want {
			t.Errorf("Select(%q).Quality = %d, want %d", tt.q, got.Quality, tt.want)
		}
		if list[idx].ID != got.ID {
			t.Errorf("Select(%q) index %d does not point at the selected candidate", tt.q, idx)
		}
	}
}

func TestSelect_MediumEvenCount(t *testing.T) {
	list := ranked(4, 2, 1, 3)

	got, idx, ok := Select(list, QualityMedium)

	if !ok {
		t.Fatal("Select ok = false")
	}
	// ascending: 1 2 3 4, element at size/2 = 2 is rank 3
	if got.Quality != 3 {
		t.Errorf("Quality = %d, want 3", got.Quality)
	}
	if idx != 3 {
		t.Errorf("index = %d, want 3", idx)
	}
}

func TestSelect_Empty(t *testing.T) {
	_, idx, ok := Select(nil, QualityHighest)
	if ok {
		t.Error("Select on empty list should return ok = false")
	}
	if idx != -1 {
		t.Errorf("index = %d, want -1", idx)
	}
}

func TestSelect_TiesKeepFirst(t *testing.T) {
	list := ranked(7, 7, 2)

	_, idx, _ := Select(list, QualityHighest)

	if idx != 0 {
		t.Errorf("index = %d, want 0 (first of equal ranks)", idx)
	}
}

func TestParseQuality(t *testing.T) {
	tests := map[string]Quality{
		"highest": QualityHighest,
		"medium":  QualityMedium,
		"lowest":  QualityLowest,
		"":        QualityDefault,
		"best":    QualityDefault,
	}
	for in, want := range tests {
		if got := ParseQuality(in); got != want {
			t.Errorf("ParseQuality(%q) = %q, want %q", in, got, want)
		}
	}
}
