package hirecs

// modularity evaluates Q over one working level:
//
//	Q = sum over items of [ self(i)/W - (weight(i)/W)^2 ]
//
// where weight(i) is the item's self-weight plus all outgoing link weights.
// Saturated items contribute nothing; they are already out of the game.
func modularity(level []*levItem, w AccWeight) AccWeight {
	if w <= 0 {
		return 0
	}
	var q AccWeight
	for _, li := range level {
		if li.self == AccWeightMax {
			continue
		}
		weight := li.self
		for _, ln := range li.links {
			weight = satAdd(weight, ln.weight)
		}
		if weight == AccWeightMax {
			continue
		}
		rel := weight / w
		q += li.self/w - rel*rel
	}
	return q
}
