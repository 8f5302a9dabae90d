package match

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ironsheep/annodiff/internal/annotation"
	"github.com/ironsheep/annodiff/internal/geometry"
)

// Strategy selects the pairing algorithm.
type Strategy int

const (
	StrategyGreedy Strategy = iota
	StrategyOptimal
)

func (s Strategy) String() string {
	switch s {
	case StrategyGreedy:
		return "greedy"
	case StrategyOptimal:
		return "optimal"
	}
	return fmt.Sprintf("strategy(%d)", int(s))
}

// ParseStrategy converts "greedy" or "optimal" to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "greedy":
		return StrategyGreedy, nil
	case "optimal", "hungarian":
		return StrategyOptimal, nil
	}
	return 0, fmt.Errorf("unknown matching strategy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Options configures Match.
type Options struct {
	// IoUThreshold is the inclusive lower bound a pair's overlap must reach.
	IoUThreshold float64

	// Strategy selects greedy or optimal pairing.
	Strategy Strategy

	// Groups enables group-aware reporting of partial matches.
	Groups bool
}

// Pair is an accepted (reference, candidate) pairing.
type Pair struct {
	Reference int     `json:"reference"`
	Candidate int     `json:"candidate"`
	Overlap   float64 `json:"overlap"`
}

// Result classifies every index of both input lists.
type Result struct {
	Matches            []Pair `json:"matches"`
	LabelMismatches    []Pair `json:"label_mismatches"`
	UnmatchedReference []int  `json:"unmatched_reference"`
	UnmatchedCandidate []int  `json:"unmatched_candidate"`

	// PartialReference and PartialCandidate are only populated when group
	// matching is enabled.
	PartialReference []int `json:"partial_reference,omitempty"`
	PartialCandidate []int `json:"partial_candidate,omitempty"`
}

// Match pairs reference and candidate annotations.
func Match(reference, candidate []annotation.Annotation, opts Options) Result {
	pairs := candidatePairs(reference, candidate, opts.IoUThreshold)

	var accepted []Pair
	switch opts.Strategy {
	case StrategyOptimal:
		accepted = assignOptimal(pairs, len(reference), len(candidate))
	default:
		accepted = assignGreedy(pairs, len(reference), len(candidate))
	}

	return classify(reference, candidate, accepted, opts.Groups)
}

// candidatePairs returns every comparable pair whose overlap is positive and
// at least threshold, sorted by overlap descending, then reference index,
// then candidate index.
func candidatePairs(reference, candidate []annotation.Annotation, threshold float64) []Pair {
	pairs := make([]Pair, 0)
	for r := range reference {
		for c := range candidate {
			score, ok := geometry.Overlap(reference[r], candidate[c])
			if !ok || score <= 0 || score < threshold {
				continue
			}
			pairs = append(pairs, Pair{Reference: r, Candidate: c, Overlap: score})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Overlap != pairs[j].Overlap {
			return pairs[i].Overlap > pairs[j].Overlap
		}
		if pairs[i].Reference != pairs[j].Reference {
			return pairs[i].Reference < pairs[j].Reference
		}
		return pairs[i].Candidate < pairs[j].Candidate
	})
	return pairs
}

func assignGreedy(pairs []Pair, numRef, numCand int) []Pair {
	refClaimed := make([]bool, numRef)
	candClaimed := make([]bool, numCand)

	accepted := make([]Pair, 0)
	for _, p := range pairs {
		if refClaimed[p.Reference] || candClaimed[p.Candidate] {
			continue
		}
		refClaimed[p.Reference] = true
		candClaimed[p.Candidate] = true
		accepted = append(accepted, p)
	}
	return accepted
}

func assignOptimal(pairs []Pair, numRef, numCand int) []Pair {
	if len(pairs) == 0 {
		return nil
	}

	cost := make([][]float64, numRef)
	for r := range cost {
		cost[r] = make([]float64, numCand)
		for c := range cost[r] {
			cost[r][c] = forbiddenCost
		}
	}
	overlap := make(map[[2]int]float64, len(pairs))
	for _, p := range pairs {
		cost[p.Reference][p.Candidate] = 1 - p.Overlap
		overlap[[2]int{p.Reference, p.Candidate}] = p.Overlap
	}

	assignment := hungarianAssign(cost)

	accepted := make([]Pair, 0)
	for r, c := range assignment {
		if c < 0 {
			continue
		}
		score, ok := overlap[[2]int{r, c}]
		if !ok {
			continue
		}
		accepted = append(accepted, Pair{Reference: r, Candidate: c, Overlap: score})
	}
	return accepted
}

// classify splits accepted pairs into matches and label mismatches and
// collects the unclaimed indices.
func classify(reference, candidate []annotation.Annotation, accepted []Pair, groups bool) Result {
	res := Result{
		Matches:            make([]Pair, 0),
		LabelMismatches:    make([]Pair, 0),
		UnmatchedReference: make([]int, 0),
		UnmatchedCandidate: make([]int, 0),
	}

	refClaimed := make([]bool, len(reference))
	candClaimed := make([]bool, len(candidate))
	refGroups := make(map[int]bool)
	candGroups := make(map[int]bool)

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].Reference < accepted[j].Reference
	})

	for _, p := range accepted {
		refClaimed[p.Reference] = true
		candClaimed[p.Candidate] = true

		ref, cand := reference[p.Reference], candidate[p.Candidate]
		if ref.Label == cand.Label {
			res.Matches = append(res.Matches, p)
		} else {
			res.LabelMismatches = append(res.LabelMismatches, p)
		}

		if ref.Group != 0 && cand.Group != 0 {
			refGroups[ref.Group] = true
			candGroups[cand.Group] = true
		}
	}

	for r, claimed := range refClaimed {
		if claimed {
			continue
		}
		if groups && reference[r].Group != 0 && refGroups[reference[r].Group] {
			res.PartialReference = append(res.PartialReference, r)
			continue
		}
		res.UnmatchedReference = append(res.UnmatchedReference, r)
	}
	for c, claimed := range candClaimed {
		if claimed {
			continue
		}
		if groups && candidate[c].Group != 0 && candGroups[candidate[c].Group] {
			res.PartialCandidate = append(res.PartialCandidate, c)
			continue
		}
		res.UnmatchedCandidate = append(res.UnmatchedCandidate, c)
	}

	return res
}
