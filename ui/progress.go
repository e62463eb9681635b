package ui

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"noisydqn/stats"
)

// Bar è la barra di avanzamento del training: un tick per frame, con un
// testo di stato aggiornato dal loop.
type Bar struct {
	bar    *progressbar.ProgressBar
	out    io.Writer
	suffix string
	failed bool
}

// NewBar crea una barra per nFrames frame che scrive su out (os.Stderr se nil).
func NewBar(nFrames int, out io.Writer) *Bar {
	if out == nil {
		out = os.Stderr
	}
	bar := progressbar.NewOptions64(int64(nFrames),
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetDescription("frame"),
	)
	return &Bar{bar: bar, out: out}
}

func (b *Bar) SetSuffix(s string) {
	b.suffix = s
	b.bar.Describe(s)
}

func (b *Bar) Suffix() string {
	return b.suffix
}

// Next avanza di un frame.
func (b *Bar) Next() {
	b.report(b.bar.Add(1))
}

// report logga solo il primo errore di scrittura della barra.
func (b *Bar) report(err error) {
	if err == nil || b.failed {
		return
	}
	b.failed = true
	log.Printf("Progress bar write failed: %v", err)
}

// Flush chiude la riga corrente, lasciando a schermo il riepilogo
// dell'episodio.
func (b *Bar) Flush() {
	fmt.Fprintln(b.out)
}

func (b *Bar) Elapsed() time.Duration {
	return secs(b.bar.State().SecondsSince)
}

func (b *Bar) ETA() time.Duration {
	return secs(b.bar.State().SecondsLeft)
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Summary formatta le statistiche aggregate di un training.
func Summary(h *stats.History, elapsed time.Duration) string {
	total := int(elapsed.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%02d:%02d:%02d - Episodes: %d | Avg: %.2f | Median: %.2f | Best: %.2f | Avg Length: %.1f",
		hours, minutes, seconds,
		h.EpisodesPlayed(),
		h.AverageReturn(),
		h.MedianReturn(),
		h.MaxReturn(),
		h.AverageLength())
}
