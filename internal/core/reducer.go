package core

// Reduce returns the list that results from applying action to list.
// It never mutates list; unknown and nil actions return an equal copy.
func Reduce(list []Record, action Action) []Record {
	switch a := action.(type) {
	case Initialise:
		return Clone(a.Posts)
	case Added:
		next := make([]Record, len(list), len(list)+1)
		copy(next, list)
		return append(next, a.Post.WithID(NextID(list)))
	case Updated:
		next := make([]Record, len(list))
		for i, r := range list {
			if r.ID == a.ID {
				r = a.Post.WithID(r.ID)
			}
			next[i] = r
		}
		return next
	case Removed:
		next := make([]Record, 0, len(list))
		for _, r := range list {
			if r.ID != a.ID {
				next = append(next, r)
			}
		}
		return next
	default:
		return Clone(list)
	}
}

// NextID is one more than the largest id in list, or 0 when list is empty.
func NextID(list []Record) int {
	max := -1
	for _, r := range list {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}

// Find returns the record with id.
func Find(list []Record, id int) (Record, bool) {
	for _, r := range list {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Clone copies list; nil becomes an empty, non-nil slice.
func Clone(list []Record) []Record {
	out := make([]Record, len(list))
	copy(out, list)
	return out
}
