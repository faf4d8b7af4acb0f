package intersection

import "sync"

// PartitionMap splits [0, MaxIndex) into ParallelDegree contiguous buckets whose
// sizes differ by at most one
type PartitionMap struct {
	MaxIndex       int
	ParallelDegree int
	Partitions     [][2]int // Beginning and end index of partitions
}

func NewPartitionMap(ParallelDegree, maxIndex int) (pm *PartitionMap) {
	if ParallelDegree > maxIndex {
		ParallelDegree = maxIndex
	}
	if ParallelDegree < 1 {
		ParallelDegree = 1
	}
	pm = &PartitionMap{
		MaxIndex:       maxIndex,
		ParallelDegree: ParallelDegree,
		Partitions:     make([][2]int, ParallelDegree),
	}
	for n := 0; n < ParallelDegree; n++ {
		pm.Partitions[n] = pm.Split1D(n)
	}
	return
}

func (pm *PartitionMap) GetBucketRange(bucketNum int) (kMin, kMax int) {
	kMin, kMax = pm.Partitions[bucketNum][0], pm.Partitions[bucketNum][1]
	return
}

func (pm *PartitionMap) Split1D(threadNum int) (bucket [2]int) {
	// The remainder is spread over the first buckets, one each
	var (
		Npart            = pm.MaxIndex / pm.ParallelDegree
		startAdd, endAdd int
		remainder        = pm.MaxIndex % pm.ParallelDegree
	)
	if remainder != 0 {
		if threadNum+1 > remainder {
			startAdd = remainder
		} else {
			startAdd = threadNum
			endAdd = 1
		}
	}
	bucket[0] = threadNum*Npart + startAdd
	bucket[1] = bucket[0] + Npart + endAdd
	return
}

// parallelCouples runs work over the buckets of [0, n) concurrently and joins the
// results in bucket order, so the output matches a serial sweep
func parallelCouples(nWorkers, n int, work func(kMin, kMax int) []Couple) (couples []Couple) {
	pm := NewPartitionMap(nWorkers, n)
	if pm.ParallelDegree == 1 {
		return work(0, n)
	}
	var (
		out = make([][]Couple, pm.ParallelDegree)
		wg  sync.WaitGroup
	)
	for np := 0; np < pm.ParallelDegree; np++ {
		wg.Add(1)
		go func(np int) {
			defer wg.Done()
			out[np] = work(pm.GetBucketRange(np))
		}(np)
	}
	wg.Wait()
	for _, c := range out {
		couples = append(couples, c...)
	}
	return
}
