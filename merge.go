package quilt

// mergeMaps merges the right map into the left map recursively.
func mergeMaps(left, right map[string]interface{}) map[string]interface{} {
	for key, rightVal := range right {
		leftVal, present := left[key]
		if !present {
			left[key] = rightVal
			continue
		}

		// if both values are maps, recursively merge them
		lMap, ok1 := leftVal.(map[string]interface{})
		rMap, ok2 := rightVal.(map[string]interface{})

		if ok1 && ok2 {
			left[key] = mergeMaps(lMap, rMap)
			continue
		}

		// if both values are slices, merge them element by element
		lSlice, ok1 := leftVal.([]interface{})
		rSlice, ok2 := rightVal.([]interface{})

		if ok1 && ok2 {
			left[key] = mergeSlices(lSlice, rSlice)
			continue
		}

		left[key] = rightVal
	}
	return left
}

// mergeSlices merges the right slice into the left slice by position.
func mergeSlices(lSlice, rSlice []interface{}) []interface{} {
	for rIdx, rv := range rSlice {
		if rIdx >= len(lSlice) {
			lSlice = append(lSlice, rv)
			continue
		}

		rMap, ok1 := rv.(map[string]interface{})
		lMap, ok2 := lSlice[rIdx].(map[string]interface{})

		if ok1 && ok2 {
			lSlice[rIdx] = mergeMaps(lMap, rMap)
		} else {
			lSlice[rIdx] = rv
		}
	}

	return lSlice
}
