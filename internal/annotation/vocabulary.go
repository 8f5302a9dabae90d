package annotation

import "strconv"

// NoneName is the display name of NoLabel.
const NoneName = "none"

// Vocabulary is the ordered list of label names shared by a dataset. A
// label's index in the list is its LabelID.
type Vocabulary []string

// Name returns the label name for id, NoneName for NoLabel, or a numeric
// placeholder for ids outside the vocabulary.
func (v Vocabulary) Name(id LabelID) string {
	if id == NoLabel {
		return NoneName
	}
	if int(id) < 0 || int(id) >= len(v) {
		return "#" + strconv.Itoa(int(id))
	}
	return v[id]
}

// Lookup returns the id of the named label.
func (v Vocabulary) Lookup(name string) (LabelID, bool) {
	for i, n := range v {
		if n == name {
			return LabelID(i), true
		}
	}
	return NoLabel, false
}
