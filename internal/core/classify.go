package core

import "time"

// A lone window at or above this duration is treated as the long slot.
const longWindowMinutes = 1440 // 24h

// ClassifyWindows assigns up to two normalized windows to the short/long
// slots. Duration decides whenever both durations are known (smaller wins
// the short slot, ties keep the primary short); with an unknown duration
// the vendor's primary/secondary positions decide. A window without a
// resolvable reset time is excluded entirely even when its percentage is
// known, since it cannot be displayed.
//
// An empty WindowSet means "no time-windowed quota data", not an error.
func ClassifyWindows(primary, secondary *NormalizedWindow) WindowSet {
	p := displayable(primary)
	s := displayable(secondary)

	switch {
	case p != nil && s != nil:
		if p.WindowMinutes != nil && s.WindowMinutes != nil && *s.WindowMinutes < *p.WindowMinutes {
			return WindowSet{Short: slotted(s, SlotShort), Long: slotted(p, SlotLong)}
		}
		// Position fallback: primary windows are the shorter ones for
		// every vendor observed so far.
		return WindowSet{Short: slotted(p, SlotShort), Long: slotted(s, SlotLong)}
	case p != nil:
		return loneWindow(p)
	case s != nil:
		return loneWindow(s)
	default:
		return WindowSet{}
	}
}

func loneWindow(w *NormalizedWindow) WindowSet {
	if w.WindowMinutes != nil && *w.WindowMinutes >= longWindowMinutes {
		return WindowSet{Long: slotted(w, SlotLong)}
	}
	// Unknown duration defaults to the short slot.
	return WindowSet{Short: slotted(w, SlotShort)}
}

func displayable(w *NormalizedWindow) *NormalizedWindow {
	if w == nil || w.ResetAt == nil {
		return nil
	}
	return w
}

func slotted(w *NormalizedWindow, slot Slot) *ClassifiedWindow {
	var reset time.Time
	if w.ResetAt != nil {
		reset = *w.ResetAt
	}
	return &ClassifiedWindow{
		Slot:          slot,
		UsedPercent:   w.UsedPercent,
		WindowMinutes: w.WindowMinutes,
		ResetAt:       reset,
	}
}
