package grove

// Capacity decisions are evaluated inside the same transaction that performs
// the mutating writes, on occupancy read within that transaction. The cached
// PlantedCount is never an input here.

// checkPlacement admits one more tree into the target lot if the live
// occupancy leaves room.
func checkPlacement(target Lot, occupancy int64) error {
	if occupancy >= target.Capacity {
		return CapacityExceededError{
			LotName:   target.Name,
			Capacity:  target.Capacity,
			Occupancy: occupancy,
		}
	}
	return nil
}

// counterDelta is a pending PlantedCount adjustment.
type counterDelta struct {
	lotID LotID
	delta int64
}

// planCounterDeltas returns the counter adjustments for moving a tree from
// sourceLotID (nil when the tree was never planted) to targetLotID. A
// same-lot move yields no deltas so the counters cannot double-count.
func planCounterDeltas(sourceLotID *LotID, targetLotID LotID) []counterDelta {
	if sourceLotID != nil && *sourceLotID == targetLotID {
		return nil
	}
	deltas := make([]counterDelta, 0, 2)
	if sourceLotID != nil {
		deltas = append(deltas, counterDelta{lotID: *sourceLotID, delta: -1})
	}
	deltas = append(deltas, counterDelta{lotID: targetLotID, delta: 1})
	return deltas
}
