package stats

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotFileName è il nome del grafico dei return dentro la cartella del run.
const PlotFileName = "returns.png"

// SavePlot disegna return medio e return di valutazione per ogni record,
// in funzione del frame finale, e salva il grafico in filename.
func (h *History) SavePlot(filename string) error {
	records := h.Records()
	if len(records) == 0 {
		return errors.New("history is empty")
	}

	p := plot.New()
	p.Title.Text = "Learning Progress"
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Return"

	returns := make(plotter.XYs, len(records))
	evals := make(plotter.XYs, len(records))
	for i, r := range records {
		returns[i].X = float64(r.EndFrame)
		returns[i].Y = r.AverageReturn
		evals[i].X = float64(r.EndFrame)
		evals[i].Y = r.EvalReturn
	}

	line, err := plotter.NewLine(returns)
	if err != nil {
		return errors.Wrap(err, "could not create return line")
	}
	evalLine, err := plotter.NewLine(evals)
	if err != nil {
		return errors.Wrap(err, "could not create eval line")
	}
	evalLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(line, evalLine)
	p.Legend.Add("Return", line)
	p.Legend.Add("Eval", evalLine)

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return errors.Wrap(err, "failed to create plot directory")
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, filename); err != nil {
		return errors.Wrap(err, "could not save plot")
	}
	return nil
}
