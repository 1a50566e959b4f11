package nights

// Segment groups classified fixes, which must already be sorted by timestamp, into
// nights. A daytime fix or a change of boundary key closes the open night; a closed
// night is never reopened, even when a later fix carries the same key.
func Segment(fixes []ClassifiedFix) []Night {
	nights := make([]Night, 0)

	var current *Night
	for _, fix := range fixes {
		if fix.IsDaytime {
			if current != nil {
				nights = append(nights, *current)
				current = nil
			}
			continue
		}

		if current == nil || !current.BoundaryKey.Equal(fix.BoundaryKey) {
			if current != nil {
				nights = append(nights, *current)
			}
			current = &Night{BoundaryKey: fix.BoundaryKey}
		}
		current.Fixes = append(current.Fixes, fix)
	}

	if current != nil {
		nights = append(nights, *current)
	}

	return nights
}

// Fixes concatenates the fixes of nights in order.
func Fixes(nights []Night) []ClassifiedFix {
	var n int
	for _, night := range nights {
		n += len(night.Fixes)
	}

	fixes := make([]ClassifiedFix, 0, n)
	for _, night := range nights {
		fixes = append(fixes, night.Fixes...)
	}
	return fixes
}
