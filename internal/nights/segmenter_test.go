package nights

import (
	"context"
	"testing"
	"time"
)

func classify(t *testing.T, opts Options, fixes ...GeoFix) []ClassifiedFix {
	t.Helper()
	out, err := NewClassifier(opts, nil).ClassifyAll(context.Background(), fixes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return out
}

func TestSegmentEmpty(t *testing.T) {
	nights := Segment(nil)
	if nights == nil {
		t.Fatal("expected a non-nil empty result")
	}
	if len(nights) != 0 {
		t.Errorf("got %d nights, expected 0", len(nights))
	}
}

func TestSegmentSingleFix(t *testing.T) {
	fixes := classify(t, Options{Basis: UTCDay}, fixAt(2016, 10, 8, 22, 31))
	nights := Segment(fixes)

	if len(nights) != 1 {
		t.Fatalf("got %d nights, expected 1", len(nights))
	}
	expected := time.Date(2016, 10, 9, 0, 0, 0, 0, time.UTC)
	if !nights[0].BoundaryKey.Equal(expected) {
		t.Errorf("BoundaryKey = %v, expected %v", nights[0].BoundaryKey, expected)
	}
	if !nights[0].BoundaryKey.Equal(fixes[0].BoundaryKey) {
		t.Errorf("night key %v differs from fix key %v", nights[0].BoundaryKey, fixes[0].BoundaryKey)
	}
}

func TestSegmentTwoFixesSameNight(t *testing.T) {
	for _, basis := range []DayBasis{LocalDay, UTCDay} {
		t.Run(basis.String(), func(t *testing.T) {
			fixes := classify(t, Options{Basis: basis}, fixAt(2016, 10, 8, 22, 31), fixAt(2016, 10, 8, 22, 32))
			nights := Segment(fixes)

			if len(nights) != 1 {
				t.Fatalf("got %d nights, expected 1", len(nights))
			}
			if len(nights[0].Fixes) != 2 {
				t.Fatalf("got %d fixes, expected 2", len(nights[0].Fixes))
			}
			if !nights[0].Fixes[0].Timestamp.Before(nights[0].Fixes[1].Timestamp) {
				t.Error("fixes are out of their original order")
			}
			for _, fix := range nights[0].Fixes {
				if !fix.BoundaryKey.Equal(nights[0].BoundaryKey) {
					t.Errorf("fix key %v differs from night key %v", fix.BoundaryKey, nights[0].BoundaryKey)
				}
			}
		})
	}
}

func TestSegmentFixesTenDaysApart(t *testing.T) {
	for _, basis := range []DayBasis{LocalDay, UTCDay} {
		t.Run(basis.String(), func(t *testing.T) {
			fixes := classify(t, Options{Basis: basis}, fixAt(2016, 10, 8, 22, 31), fixAt(2016, 10, 18, 22, 32))
			nights := Segment(fixes)

			if len(nights) != 2 {
				t.Fatalf("got %d nights, expected 2", len(nights))
			}
			for i, night := range nights {
				if len(night.Fixes) != 1 {
					t.Errorf("night %d has %d fixes, expected 1", i, len(night.Fixes))
				}
			}
			if gap := nights[1].BoundaryKey.Sub(nights[0].BoundaryKey); gap != 10*24*time.Hour {
				t.Errorf("boundary keys are %v apart, expected ten days", gap)
			}
		})
	}
}

func TestSegmentDaytimeClosesNight(t *testing.T) {
	fixes := classify(t, Options{},
		fixAt(2016, 10, 8, 22, 0),
		fixAt(2016, 10, 8, 23, 0),
		fixAt(2016, 10, 9, 12, 0), // daytime
		fixAt(2016, 10, 9, 20, 0),
	)
	nights := Segment(fixes)

	if len(nights) != 2 {
		t.Fatalf("got %d nights, expected 2", len(nights))
	}
	if len(nights[0].Fixes) != 2 || len(nights[1].Fixes) != 1 {
		t.Errorf("unexpected night sizes %d and %d", len(nights[0].Fixes), len(nights[1].Fixes))
	}
	for _, night := range nights {
		for _, fix := range night.Fixes {
			if fix.IsDaytime {
				t.Errorf("daytime fix %v inside a night", fix.Timestamp)
			}
		}
	}
}

func TestSegmentNeverReopens(t *testing.T) {
	a := time.Date(2016, 10, 9, 0, 0, 0, 0, edt)
	b := time.Date(2016, 10, 10, 0, 0, 0, 0, edt)
	at := func(minutes int, key time.Time, daytime bool) ClassifiedFix {
		return ClassifiedFix{
			GeoFix:      GeoFix{Timestamp: a.Add(time.Duration(minutes) * time.Minute)},
			IsDaytime:   daytime,
			BoundaryKey: key,
		}
	}

	tests := []struct {
		name     string
		fixes    []ClassifiedFix
		expected []int
	}{
		{"key change and back", []ClassifiedFix{at(0, a, false), at(1, b, false), at(2, a, false)}, []int{1, 1, 1}},
		{"daytime gap with same key", []ClassifiedFix{at(0, a, false), at(1, a, true), at(2, a, false)}, []int{1, 1}},
		{"leading and trailing daytime", []ClassifiedFix{at(0, a, true), at(1, a, false), at(2, a, false), at(3, b, true)}, []int{2}},
		{"only daytime", []ClassifiedFix{at(0, a, true), at(1, b, true)}, nil},
		{"one long run", []ClassifiedFix{at(0, a, false), at(1, a, false), at(2, a, false), at(3, a, false)}, []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nights := Segment(tt.fixes)
			if len(nights) != len(tt.expected) {
				t.Fatalf("got %d nights, expected %d", len(nights), len(tt.expected))
			}
			for i, n := range tt.expected {
				if len(nights[i].Fixes) != n {
					t.Errorf("night %d has %d fixes, expected %d", i, len(nights[i].Fixes), n)
				}
				if len(nights[i].Fixes) == 0 {
					t.Errorf("night %d is empty", i)
				}
			}
		})
	}
}

// track returns fixes every interval over several days at 40N 75W
func track(days int, interval time.Duration) []GeoFix {
	var fixes []GeoFix
	start := time.Date(2016, 10, 5, 0, 0, 0, 0, edt)
	for ts := start; ts.Before(start.AddDate(0, 0, days)); ts = ts.Add(interval) {
		fixes = append(fixes, GeoFix{Timestamp: ts, Latitude: 40, Longitude: -75})
	}
	return fixes
}

func TestSegmentIdempotent(t *testing.T) {
	nights := Segment(classify(t, Options{}, track(5, 25*time.Minute)...))
	again := Segment(Fixes(nights))

	if len(again) != len(nights) {
		t.Fatalf("got %d nights on the second pass, expected %d", len(again), len(nights))
	}
	for i := range nights {
		if !again[i].BoundaryKey.Equal(nights[i].BoundaryKey) || len(again[i].Fixes) != len(nights[i].Fixes) {
			t.Errorf("night %d changed: %v/%d vs %v/%d", i,
				again[i].BoundaryKey, len(again[i].Fixes), nights[i].BoundaryKey, len(nights[i].Fixes))
		}
	}
}

func TestSegmentCountIndependentOfStrategy(t *testing.T) {
	fixes := track(7, 20*time.Minute)

	for _, basis := range []DayBasis{LocalDay, UTCDay} {
		t.Run(basis.String(), func(t *testing.T) {
			shifted := Segment(classify(t, Options{Strategy: ShiftedMidnight, Basis: basis}, fixes...))
			previous := Segment(classify(t, Options{Strategy: PreviousSunset, Basis: basis}, fixes...))

			// the track starts at midnight, so it holds a partial first night plus one per evening
			if len(shifted) != 8 {
				t.Errorf("got %d nights, expected 8", len(shifted))
			}
			if len(shifted) != len(previous) {
				t.Fatalf("shifted-midnight produced %d nights, previous-sunset %d", len(shifted), len(previous))
			}
			for i := range shifted {
				if len(shifted[i].Fixes) != len(previous[i].Fixes) {
					t.Errorf("night %d: %d vs %d fixes", i, len(shifted[i].Fixes), len(previous[i].Fixes))
				}
				if shifted[i].BoundaryKey.Equal(previous[i].BoundaryKey) {
					t.Errorf("night %d: expected the strategies to produce different keys", i)
				}
			}
		})
	}
}

func TestSegmentOneNightAcrossUTCMidnight(t *testing.T) {
	// 19:00 and 22:31 EDT fall on either side of 00:00 UTC; 05:00 is before the next sunrise.
	fixes := []GeoFix{fixAt(2016, 10, 8, 19, 0), fixAt(2016, 10, 8, 22, 31), fixAt(2016, 10, 9, 5, 0)}

	for _, basis := range []DayBasis{LocalDay, UTCDay} {
		for _, strategy := range []Strategy{ShiftedMidnight, PreviousSunset} {
			t.Run(basis.String()+"/"+strategy.String(), func(t *testing.T) {
				classified := classify(t, Options{Strategy: strategy, Basis: basis}, fixes...)
				for i := 1; i < len(classified); i++ {
					if !classified[i].BoundaryKey.Equal(classified[0].BoundaryKey) {
						t.Errorf("fix %d key %v differs from fix 0 key %v", i, classified[i].BoundaryKey, classified[0].BoundaryKey)
					}
				}

				nights := Segment(classified)
				if len(nights) != 1 {
					t.Fatalf("got %d nights, expected 1", len(nights))
				}
				if len(nights[0].Fixes) != 3 {
					t.Errorf("got %d fixes, expected 3", len(nights[0].Fixes))
				}
			})
		}
	}
}
