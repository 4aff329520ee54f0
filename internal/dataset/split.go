package dataset

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split partitions d into a training and a validation set.
//
// fraction is the share of samples that go to the validation set and must
// be in (0, 1). When stratified is set the class proportions of d are kept
// in both sets. Both sets must end up non-empty.
func (d *Dataset) Split(fraction float64, stratified bool, rng *rand.Rand) (train, valid *Dataset, err error) {
	if fraction <= 0 || fraction >= 1 {
		return nil, nil, fmt.Errorf("%w: fraction %g not in (0, 1)", ErrInvalidSplit, fraction)
	}
	if err := d.Validate(); err != nil {
		return nil, nil, err
	}

	var trainIdx, validIdx []int
	if stratified {
		trainIdx, validIdx = stratifiedIndices(d.Y, fraction, rng)
	} else {
		perm := rng.Perm(d.Len())
		n := int(math.Ceil(fraction * float64(d.Len())))
		validIdx, trainIdx = perm[:n], perm[n:]
	}
	if len(trainIdx) == 0 || len(validIdx) == 0 {
		return nil, nil, fmt.Errorf("%w: %d samples give %d train / %d valid", ErrInvalidSplit, d.Len(), len(trainIdx), len(validIdx))
	}

	sort.Ints(trainIdx)
	sort.Ints(validIdx)
	return d.Subset(trainIdx), d.Subset(validIdx), nil
}

func stratifiedIndices(y []int32, fraction float64, rng *rand.Rand) (train, valid []int) {
	byClass := make(map[int32][]int)
	var classes []int32
	for i, label := range y {
		if _, ok := byClass[label]; !ok {
			classes = append(classes, label)
		}
		byClass[label] = append(byClass[label], i)
	}
	sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })

	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		n := int(math.Round(fraction * float64(len(idx))))
		if n == 0 && len(idx) > 1 {
			n = 1
		}
		valid = append(valid, idx[:n]...)
		train = append(train, idx[n:]...)
	}
	return train, valid
}
