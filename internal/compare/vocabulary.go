package compare

import (
	"fmt"

	"github.com/ironsheep/annodiff/internal/annotation"
)

// reconcile merges the two label vocabularies. translate maps candidate label
// ids to ids in the merged vocabulary; it is nil when ids carry over
// unchanged.
//
// Without a mapping the vocabularies must agree at every index both define
// and the longer one wins. With a mapping, candidate names are translated and
// looked up in the reference vocabulary; names it lacks are appended.
func reconcile(ref, cand annotation.Vocabulary, mapping map[string]string) (annotation.Vocabulary, []annotation.LabelID, error) {
	if len(mapping) == 0 {
		shared := min(len(ref), len(cand))
		for i := 0; i < shared; i++ {
			if ref[i] != cand[i] {
				return nil, nil, fmt.Errorf("%w: label %d is %q in reference and %q in candidate",
					ErrIncompatibleVocabulary, i, ref[i], cand[i])
			}
		}
		if len(cand) > len(ref) {
			return append(annotation.Vocabulary(nil), cand...), nil, nil
		}
		return append(annotation.Vocabulary(nil), ref...), nil, nil
	}

	merged := append(annotation.Vocabulary(nil), ref...)
	translate := make([]annotation.LabelID, len(cand))
	for i, name := range cand {
		if mapped, ok := mapping[name]; ok {
			name = mapped
		}
		id, ok := merged.Lookup(name)
		if !ok {
			id = annotation.LabelID(len(merged))
			merged = append(merged, name)
		}
		translate[i] = id
	}
	return merged, translate, nil
}

// translateLabels returns a copy of anns with labels rewritten through
// translate. Labels outside the candidate vocabulary are left unchanged.
func translateLabels(anns []annotation.Annotation, translate []annotation.LabelID) []annotation.Annotation {
	if translate == nil {
		return anns
	}
	out := make([]annotation.Annotation, len(anns))
	for i, a := range anns {
		if a.Label >= 0 && int(a.Label) < len(translate) {
			a.Label = translate[a.Label]
		}
		out[i] = a
	}
	return out
}
