// Package analysis implements the per-core performance-analysis sink:
// a streaming percentile estimator for request latency, flushed once
// per worker tick.
package analysis

// quantile implements Jain & Chlamtac's P² algorithm: a target
// percentile tracked in constant space from five marker heights,
// without retaining any samples.
type quantile struct {
	p           float64
	q           [5]float64
	n           [5]int
	np          [5]float64
	dn          [5]float64
	count       int
	initialized bool
	initBuf     [5]float64
}

func newQuantile(p float64) *quantile {
	return &quantile{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

// Update folds one new sample into the estimator.
func (q *quantile) Update(x float64) {
	q.count++
	if !q.initialized {
		q.initBuf[q.count-1] = x
		if q.count == 5 {
			sortFloats(q.initBuf[:])
			for i := 0; i < 5; i++ {
				q.q[i] = q.initBuf[i]
				q.n[i] = i + 1
				q.np[i] = 1 + 4*q.dn[i]
			}
			q.initialized = true
		}
		return
	}

	k := 0
	switch {
	case x < q.q[0]:
		q.q[0] = x
	case x >= q.q[4]:
		q.q[4] = x
		k = 3
	default:
		for i := 0; i < 4; i++ {
			if x < q.q[i+1] {
				k = i
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		q.n[i]++
	}
	for i := 0; i < 5; i++ {
		q.np[i] += q.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := q.np[i] - float64(q.n[i])
		if (d >= 1 && q.n[i+1]-q.n[i] > 1) || (d <= -1 && q.n[i-1]-q.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}
			qNew := q.parabolic(i, float64(sign))
			if q.q[i-1] < qNew && qNew < q.q[i+1] {
				q.q[i] = qNew
			} else {
				q.q[i] = q.linear(i, sign)
			}
			q.n[i] += sign
		}
	}
}

func (q *quantile) parabolic(i int, d float64) float64 {
	term1 := (float64(q.n[i]-q.n[i-1]) + d) * (q.q[i+1] - q.q[i]) / float64(q.n[i+1]-q.n[i])
	term2 := (float64(q.n[i+1]-q.n[i]) - d) * (q.q[i] - q.q[i-1]) / float64(q.n[i]-q.n[i-1])
	return q.q[i] + (d/float64(q.n[i+1]-q.n[i-1]))*(term1+term2)
}

func (q *quantile) linear(i, d int) float64 {
	return q.q[i] + float64(d)*(q.q[i+d]-q.q[i])/float64(q.n[i+d]-q.n[i])
}

// Value returns the current percentile estimate.
func (q *quantile) Value() float64 {
	if !q.initialized {
		if q.count == 0 {
			return 0
		}
		sorted := append([]float64(nil), q.initBuf[:q.count]...)
		sortFloats(sorted)
		idx := int(q.p * float64(len(sorted)-1))
		return sorted[idx]
	}
	return q.q[2]
}

func sortFloats(a []float64) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j-1] > a[j]; j-- {
			a[j-1], a[j] = a[j], a[j-1]
		}
	}
}
