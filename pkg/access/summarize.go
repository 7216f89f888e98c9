package access

// Summarize collapses a set of levels into a single player-facing value.
//
// The strongest level says whether the player can get something; the weakest
// says whether they can get everything. When the two diverge across the
// Inspect boundary the result is Partial. An empty set summarizes to Cleared.
func Summarize(levels []Level) Level {
	if len(levels) == 0 {
		return Cleared
	}

	least, most := levels[0], levels[0]
	for _, l := range levels[1:] {
		least = Min(least, l)
		most = Max(most, l)
	}

	switch most {
	case None:
		return None
	case Partial:
		return Partial
	case Inspect:
		return Inspect
	case SequenceBreak:
		if least <= Inspect {
			return Partial
		}
		return SequenceBreak
	case Normal, Cleared:
		switch {
		case least <= Inspect:
			return Partial
		case least == SequenceBreak:
			return SequenceBreak
		default:
			return Normal
		}
	default:
		panic("access: summarize on invalid level " + most.String())
	}
}
