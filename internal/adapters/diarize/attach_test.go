package diarize

import (
	"reflect"
	"testing"
)

func TestSpeakers_Table(t *testing.T) {
	base := []Turn{
		{Speaker: "SPEAKER_00", Start: 0, End: 5},
		{Speaker: "SPEAKER_01", Start: 5, End: 10},
	}

	tests := []struct {
		name       string
		windows    [][2]float64
		turns      []Turn
		minOverlap float64
		want       []string
	}{
		{
			name:       "clean attribution",
			windows:    [][2]float64{{0.5, 4.0}, {6.0, 9.0}},
			turns:      base,
			minOverlap: DefaultMinOverlap,
			want:       []string{"SPEAKER_00", "SPEAKER_01"},
		},
		{
			name:       "straddling window goes to larger overlap",
			windows:    [][2]float64{{4.0, 9.0}},
			turns:      base,
			minOverlap: DefaultMinOverlap,
			want:       []string{"SPEAKER_01"},
		},
		{
			name:       "overlap under threshold stays unattributed",
			windows:    [][2]float64{{4.95, 11.0}},
			turns:      []Turn{{Speaker: "SPEAKER_00", Start: 0, End: 5}},
			minOverlap: 2.0,
			want:       []string{""},
		},
		{
			name:       "window outside all turns",
			windows:    [][2]float64{{20.0, 25.0}},
			turns:      base,
			minOverlap: 0,
			want:       []string{""},
		},
		{
			name:       "no turns",
			windows:    [][2]float64{{0, 1}},
			turns:      nil,
			minOverlap: 0,
			want:       []string{""},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			got := Speakers(tc.windows, tc.turns, tc.minOverlap)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Speakers = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		a0, a1, b0, b1, want float64
	}{
		{0, 5, 3, 8, 2},
		{0, 5, 5, 8, 0},
		{3, 4, 0, 10, 1},
		{0, 10, 2, 4, 2},
		{0, 1, 5, 6, 0},
	}
	for _, tc := range tests {
		if got := overlap(tc.a0, tc.a1, tc.b0, tc.b1); got != tc.want {
			t.Fatalf("overlap(%v,%v,%v,%v) = %v, want %v", tc.a0, tc.a1, tc.b0, tc.b1, got, tc.want)
		}
	}
}
