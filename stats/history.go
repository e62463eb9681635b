package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// GroupSize è il numero di record che vengono compressi in un gruppo.
const GroupSize = 100

// FileName è il nome del file della history dentro la cartella del run.
const FileName = "history.json"

// History contiene tutti gli episodi registrati, singoli o raggruppati, e
// fornisce statistiche aggregate.
type History struct {
	Episodes  []EpisodeRecord `json:"episodes"`
	GroupSize int             `json:"groupSize"`
	mutex     sync.RWMutex
}

// EpisodeRecord rappresenta un episodio (CompressionIndex 0) o un gruppo di
// episodi compressi (CompressionIndex > 0).
type EpisodeRecord struct {
	StartTime        time.Time `json:"startTime"`
	EndTime          time.Time `json:"endTime"`
	StartFrame       int       `json:"startFrame"`
	EndFrame         int       `json:"endFrame"`
	CompressionIndex int       `json:"compressionIndex"`
	EpisodesCount    int       `json:"episodesCount"`
	AverageReturn    float64   `json:"averageReturn"`
	MedianReturn     float64   `json:"medianReturn"`
	MaxReturn        float64   `json:"maxReturn"`
	MinReturn        float64   `json:"minReturn"`
	AverageLength    float64   `json:"averageLength"`
	AverageLoss      float64   `json:"averageLoss"`
	// EvalReturn è l'ultimo return di valutazione noto, 0 se assente.
	EvalReturn float64 `json:"evalReturn"`
}

// Episode descrive un episodio appena concluso.
type Episode struct {
	StartTime  time.Time
	EndTime    time.Time
	StartFrame int
	EndFrame   int
	Return     float64
	MeanLoss   float64
	EvalReturn float64
}

// NewHistory crea una history vuota. groupSize <= 1 disattiva la compressione.
func NewHistory(groupSize int) *History {
	return &History{
		Episodes:  make([]EpisodeRecord, 0),
		GroupSize: groupSize,
	}
}

// Add registra un episodio e comprime i record se necessario.
func (h *History) Add(ep Episode) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.Episodes = append(h.Episodes, EpisodeRecord{
		StartTime:     ep.StartTime,
		EndTime:       ep.EndTime,
		StartFrame:    ep.StartFrame,
		EndFrame:      ep.EndFrame,
		EpisodesCount: 1,
		AverageReturn: ep.Return,
		MedianReturn:  ep.Return,
		MaxReturn:     ep.Return,
		MinReturn:     ep.Return,
		AverageLength: float64(ep.EndFrame - ep.StartFrame),
		AverageLoss:   ep.MeanLoss,
		EvalReturn:    ep.EvalReturn,
	})
	h.compress()
}

// compress raggruppa ogni GroupSize record con lo stesso indice di
// compressione in un record del livello successivo.
func (h *History) compress() {
	if h.GroupSize <= 1 {
		return
	}
	sort.SliceStable(h.Episodes, func(i, j int) bool {
		if h.Episodes[i].CompressionIndex != h.Episodes[j].CompressionIndex {
			return h.Episodes[i].CompressionIndex > h.Episodes[j].CompressionIndex
		}
		return h.Episodes[i].StartFrame < h.Episodes[j].StartFrame
	})

	for level := 0; ; level++ {
		var records, rest []EpisodeRecord
		for _, r := range h.Episodes {
			if r.CompressionIndex == level {
				records = append(records, r)
			} else {
				rest = append(rest, r)
			}
		}
		if len(records) < h.GroupSize {
			break
		}

		full := len(records) / h.GroupSize * h.GroupSize
		for i := 0; i < full; i += h.GroupSize {
			rest = append(rest, mergeRecords(records[i:i+h.GroupSize], level+1))
		}
		h.Episodes = append(rest, records[full:]...)
	}

	sort.SliceStable(h.Episodes, func(i, j int) bool {
		return h.Episodes[i].StartFrame < h.Episodes[j].StartFrame
	})
}

func mergeRecords(group []EpisodeRecord, level int) EpisodeRecord {
	merged := EpisodeRecord{
		StartTime:        group[0].StartTime,
		EndTime:          group[0].EndTime,
		StartFrame:       group[0].StartFrame,
		EndFrame:         group[0].EndFrame,
		CompressionIndex: level,
		MaxReturn:        group[0].MaxReturn,
		MinReturn:        group[0].MinReturn,
	}

	medians := make([]float64, 0, len(group))
	weights := make([]float64, 0, len(group))
	returns := make([]float64, 0, len(group))
	lengths := make([]float64, 0, len(group))
	losses := make([]float64, 0, len(group))
	for _, r := range group {
		if r.StartTime.Before(merged.StartTime) {
			merged.StartTime = r.StartTime
		}
		if r.EndTime.After(merged.EndTime) {
			merged.EndTime = r.EndTime
		}
		if r.StartFrame < merged.StartFrame {
			merged.StartFrame = r.StartFrame
		}
		if r.EndFrame > merged.EndFrame {
			merged.EndFrame = r.EndFrame
			merged.EvalReturn = r.EvalReturn
		}
		if r.MaxReturn > merged.MaxReturn {
			merged.MaxReturn = r.MaxReturn
		}
		if r.MinReturn < merged.MinReturn {
			merged.MinReturn = r.MinReturn
		}
		merged.EpisodesCount += r.EpisodesCount

		w := float64(r.EpisodesCount)
		weights = append(weights, w)
		medians = append(medians, r.MedianReturn)
		returns = append(returns, r.AverageReturn)
		lengths = append(lengths, r.AverageLength)
		losses = append(losses, r.AverageLoss)
	}

	merged.AverageReturn = stat.Mean(returns, weights)
	merged.AverageLength = stat.Mean(lengths, weights)
	merged.AverageLoss = stat.Mean(losses, weights)
	merged.MedianReturn = weightedMedian(medians, weights)
	return merged
}

// weightedMedian ordina values (e weights in parallelo) sul posto.
func weightedMedian(values, weights []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sort.Sort(byValue{values, weights})
	return stat.Quantile(0.5, stat.Empirical, values, weights)
}

type byValue struct {
	values, weights []float64
}

func (b byValue) Len() int {
	return len(b.values)
}

func (b byValue) Less(i, j int) bool {
	return b.values[i] < b.values[j]
}

func (b byValue) Swap(i, j int) {
	b.values[i], b.values[j] = b.values[j], b.values[i]
	b.weights[i], b.weights[j] = b.weights[j], b.weights[i]
}

// Records restituisce una copia dei record attuali.
func (h *History) Records() []EpisodeRecord {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return append([]EpisodeRecord(nil), h.Episodes...)
}

// EpisodesPlayed restituisce il numero totale di episodi registrati.
func (h *History) EpisodesPlayed() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	total := 0
	for _, r := range h.Episodes {
		total += r.EpisodesCount
	}
	return total
}

// AverageReturn calcola il return medio pesato sul numero di episodi.
func (h *History) AverageReturn() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.Episodes) == 0 {
		return 0
	}
	values, weights := h.column(func(r EpisodeRecord) float64 { return r.AverageReturn })
	return stat.Mean(values, weights)
}

// MedianReturn calcola il return mediano, usando le mediane dei gruppi.
func (h *History) MedianReturn() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	values, weights := h.column(func(r EpisodeRecord) float64 { return r.MedianReturn })
	return weightedMedian(values, weights)
}

// MaxReturn restituisce il return massimo registrato.
func (h *History) MaxReturn() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.Episodes) == 0 {
		return 0
	}
	best := h.Episodes[0].MaxReturn
	for _, r := range h.Episodes {
		if r.MaxReturn > best {
			best = r.MaxReturn
		}
	}
	return best
}

// AverageLength calcola la durata media degli episodi in frame.
func (h *History) AverageLength() float64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if len(h.Episodes) == 0 {
		return 0
	}
	values, weights := h.column(func(r EpisodeRecord) float64 { return r.AverageLength })
	return stat.Mean(values, weights)
}

func (h *History) column(f func(EpisodeRecord) float64) ([]float64, []float64) {
	values := make([]float64, len(h.Episodes))
	weights := make([]float64, len(h.Episodes))
	for i, r := range h.Episodes {
		values[i] = f(r)
		weights[i] = float64(r.EpisodesCount)
	}
	return values, weights
}

// SaveToFile salva la history su file in formato JSON.
func (h *History) SaveToFile(filename string) error {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "failed to create history directory")
	}

	jsonData, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal history")
	}

	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return errors.Wrap(err, "failed to write history file")
	}
	return nil
}

// LoadHistory carica una history da file. Se il file non esiste restituisce
// una history vuota con il groupSize indicato.
func LoadHistory(filename string, groupSize int) (*History, error) {
	h := NewHistory(groupSize)
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return h, nil
		}
		return nil, errors.Wrap(err, "failed to read history file")
	}

	if err := json.Unmarshal(data, h); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal history")
	}
	if h.Episodes == nil {
		h.Episodes = make([]EpisodeRecord, 0)
	}
	return h, nil
}
