package catalog

import "testing"

func TestID2LabelOrder(t *testing.T) {
	if len(ID2Label) != 13 {
		t.Fatalf("len(ID2Label) = %d; want 13", len(ID2Label))
	}
	// Index 3 is the Invalid sentinel in the trained output ordering.
	if ID2Label[3] != InvalidLabel {
		t.Errorf("ID2Label[3] = %q; want %q", ID2Label[3], InvalidLabel)
	}
	if ID2Label[0] != "Corn___Common_Rust" {
		t.Errorf("ID2Label[0] = %q; want Corn___Common_Rust", ID2Label[0])
	}
	if ID2Label[12] != "Wheat___Yellow_Rust" {
		t.Errorf("ID2Label[12] = %q; want Wheat___Yellow_Rust", ID2Label[12])
	}
}

func TestEveryLabelHasInfo(t *testing.T) {
	for i, label := range ID2Label {
		info := Lookup(label)
		if info.Name == "" || info.Description == "" || info.Treatment == "" {
			t.Errorf("label %q (index %d) has incomplete catalog entry: %+v", label, i, info)
		}
	}
}

func TestLookupFallsBackToInvalid(t *testing.T) {
	info := Lookup("Banana___Mystery_Disease")
	want := Lookup(InvalidLabel)
	if info != want {
		t.Errorf("Lookup(unknown) = %+v; want Invalid entry %+v", info, want)
	}
	if info.Name != "Invalid Image" {
		t.Errorf("fallback Name = %q; want %q", info.Name, "Invalid Image")
	}
	if info.Description == "" || info.Treatment == "" {
		t.Error("fallback entry must never be empty")
	}
}

func TestLabelAt(t *testing.T) {
	tests := []struct {
		index    int
		expected ClassLabel
	}{
		{0, "Corn___Common_Rust"},
		{3, "Invalid"},
		{12, "Wheat___Yellow_Rust"},
		{13, "class_13"},
		{-1, "class_-1"},
	}
	for _, tt := range tests {
		if got := LabelAt(tt.index); got != tt.expected {
			t.Errorf("LabelAt(%d) = %q; want %q", tt.index, got, tt.expected)
		}
	}
}
