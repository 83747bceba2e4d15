package types

// IsValidStatusTransition validates a memory status change.
//
// Valid transitions:
//
//	active        -> completed | archived | decaying | deprecated | superseded | cold_storage | contradictory
//	decaying      -> active | cold_storage | archived | deprecated
//	cold_storage  -> active | archived | deprecated
//	contradictory -> active | deprecated | superseded | archived
//	completed     -> archived | superseded | active
//	deprecated    -> archived | active
//	superseded    -> archived
//	archived      -> active
//
// Setting the current status again is a no-op and always allowed.
func IsValidStatusTransition(current, next MemoryStatus) bool {
	if !IsValidStatus(next) {
		return false
	}
	if current == next {
		return true
	}

	switch current {
	case StatusActive:
		return next != StatusActive
	case StatusDecaying:
		return next == StatusActive || next == StatusColdStorage || next == StatusArchived || next == StatusDeprecated
	case StatusColdStorage:
		return next == StatusActive || next == StatusArchived || next == StatusDeprecated
	case StatusContradictory:
		return next == StatusActive || next == StatusDeprecated || next == StatusSuperseded || next == StatusArchived
	case StatusCompleted:
		return next == StatusArchived || next == StatusSuperseded || next == StatusActive
	case StatusDeprecated:
		return next == StatusArchived || next == StatusActive
	case StatusSuperseded:
		return next == StatusArchived
	case StatusArchived:
		return next == StatusActive
	default:
		return false
	}
}
