package planner

import "testing"

func TestParseSlots(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SlotCatalog
		wantErr bool
	}{
		{
			name:  "named windows keep order",
			input: "evening=18:00-22:00, morning=06:00-09:00",
			want:  SlotCatalog{{"evening", 1080, 1320}, {"morning", 360, 540}},
		},
		{
			name:  "unnamed window",
			input: "07:30-08:15",
			want:  SlotCatalog{{"slot1", 450, 495}},
		},
		{name: "empty", input: " , ", wantErr: true},
		{name: "missing dash", input: "morning=06:00", wantErr: true},
		{name: "bad clock", input: "morning=6h-9h", wantErr: true},
		{name: "reversed", input: "late=22:00-18:00", wantErr: true},
		{name: "overlap", input: "a=06:00-09:00,b=08:00-10:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSlots(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSlots(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseSlots(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("slot %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSlotCatalog_Find(t *testing.T) {
	slots := DefaultSlots()

	tests := []struct {
		name      string
		busy      []interval
		duration  int
		wantStart int
		wantOK    bool
	}{
		{"empty day", nil, 60, 360, true},
		{"after busy start", []interval{{360, 420}}, 60, 420, true},
		{"gap between blocks", []interval{{360, 400}, {460, 540}}, 60, 400, true},
		{"gap too small", []interval{{360, 400}, {450, 540}}, 60, 720, true},
		{"morning and midday full", []interval{{360, 540}, {720, 840}}, 30, 1080, true},
		{"longer than any window", nil, 300, 0, false},
		{"everything taken", []interval{{360, 540}, {720, 840}, {1080, 1320}}, 15, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, ok := slots.find(tt.busy, tt.duration)
			if ok != tt.wantOK || start != tt.wantStart {
				t.Errorf("find() = (%d, %v), want (%d, %v)", start, ok, tt.wantStart, tt.wantOK)
			}
		})
	}
}

func TestSlotCatalog_FindFree(t *testing.T) {
	slots := DefaultSlots()

	w, ok := slots.findFree([]interval{{480, 500}})
	if !ok || w.Name != "midday" {
		t.Errorf("findFree() = (%v, %v), want midday", w, ok)
	}

	if _, ok := slots.findFree([]interval{{360, 361}, {720, 721}, {1080, 1081}}); ok {
		t.Error("findFree() ok = true, want false when every window is touched")
	}
}

func TestBusyOn(t *testing.T) {
	blocks := []StudyBlock{
		{Date: "2025-01-01", Start: "12:00", End: "13:00", UserID: "u1"},
		{Date: "2025-01-01", Start: "06:00", End: "07:00", UserID: "u1"},
		{Date: "2025-01-01", Start: "08:00", End: "09:00", UserID: "u2"},
		{Date: "2025-01-02", Start: "06:00", End: "07:00", UserID: "u1"},
	}

	got := busyOn(blocks, "2025-01-01", "u1")
	want := []interval{{360, 420}, {720, 780}}
	if len(got) != len(want) {
		t.Fatalf("busyOn() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("busyOn()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestStudyBlock_Overlaps(t *testing.T) {
	base := StudyBlock{Date: "2025-01-01", Start: "06:00", End: "07:00", UserID: "u1"}

	tests := []struct {
		name  string
		other StudyBlock
		want  bool
	}{
		{"identical", base, true},
		{"touching", StudyBlock{Date: "2025-01-01", Start: "07:00", End: "08:00", UserID: "u1"}, false},
		{"partial", StudyBlock{Date: "2025-01-01", Start: "06:30", End: "07:30", UserID: "u1"}, true},
		{"other date", StudyBlock{Date: "2025-01-02", Start: "06:00", End: "07:00", UserID: "u1"}, false},
		{"other user", StudyBlock{Date: "2025-01-01", Start: "06:00", End: "07:00", UserID: "u2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Overlaps(tt.other); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	tests := []struct {
		typ  BlockType
		name string
		want string
	}{
		{BlockStudy, "portuguese language", "Study · Portuguese Language"},
		{BlockReview, "Constitutional Law", "Review · Constitutional Law"},
		{BlockSimulatedExam, "IT", "Simulated exam · IT"},
		{BlockStudy, "", "Study"},
	}

	for _, tt := range tests {
		if got := Title(tt.typ, tt.name); got != tt.want {
			t.Errorf("Title(%s, %q) = %q, want %q", tt.typ, tt.name, got, tt.want)
		}
	}
}

func TestAllocate_Weights(t *testing.T) {
	b := Allocate(20, 0.6, []DisciplineRating{{"1", 5}, {"2", 1}})

	if b.WeeklyMinutes != 1200 || b.StudyMinutes != 720 || b.ReviewMinutes != 480 {
		t.Errorf("Budget = %+v, want 1200/720/480", b)
	}
	if got := b.Allocations[0]; got.Weight != 1 || got.WeeklyMinutes != 120 {
		t.Errorf("Allocations[0] = %+v, want weight 1, 120 minutes", got)
	}
	if got := b.Allocations[1]; got.Weight != 5 || got.WeeklyMinutes != 600 {
		t.Errorf("Allocations[1] = %+v, want weight 5, 600 minutes", got)
	}
}

func TestAllocate_LargestRemainder(t *testing.T) {
	// 100 minutes over three equal weights: 34 + 33 + 33.
	b := Allocate(100.0/60, 1, []DisciplineRating{{"a", 3}, {"b", 3}, {"c", 3}})

	sum := 0
	for _, a := range b.Allocations {
		sum += a.WeeklyMinutes
		if a.WeeklyMinutes < 33 || a.WeeklyMinutes > 34 {
			t.Errorf("allocation %s = %d, want 33 or 34", a.DisciplineID, a.WeeklyMinutes)
		}
	}
	if sum != 100 {
		t.Errorf("sum = %d, want 100", sum)
	}
}
