package train

// AverageMeter accumula osservazioni scalari.
type AverageMeter struct {
	Val   float64
	Sum   float64
	Avg   float64
	Count int
}

// Update registra un nuovo valore.
func (m *AverageMeter) Update(v float64) {
	m.Val = v
	m.Sum += v
	m.Count++
	m.Avg = m.Sum / float64(m.Count)
}

func (m *AverageMeter) Reset() {
	*m = AverageMeter{}
}
