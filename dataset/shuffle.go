package dataset

import "math/rand"

// EpochPermutations returns epochs independent permutations of the
// fragment list, concatenated: the same fragment recurs once per epoch,
// each epoch in its own order.
func EpochPermutations(fragments []*Fragment, epochs int, rng *rand.Rand) []*Fragment {
	out := make([]*Fragment, 0, len(fragments)*epochs)
	for e := 0; e < epochs; e++ {
		for _, i := range rng.Perm(len(fragments)) {
			out = append(out, fragments[i])
		}
	}
	return out
}

// RepeatEpochs returns the fragment list repeated epochs times in its
// original order.
func RepeatEpochs(fragments []*Fragment, epochs int) []*Fragment {
	out := make([]*Fragment, 0, len(fragments)*epochs)
	for e := 0; e < epochs; e++ {
		out = append(out, fragments...)
	}
	return out
}
