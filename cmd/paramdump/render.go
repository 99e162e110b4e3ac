package main

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/KevinKickass/ParamBridge/internal/parameters"
	"github.com/KevinKickass/ParamBridge/internal/paramsync"
	"github.com/KevinKickass/ParamBridge/internal/types"
	"github.com/pterm/pterm"
)

const maxDescription = 60

// progress mirrors coordinator flushes onto a spinner. Flushes arrive with
// the coordinator lock held, so it only updates text.
type progress struct {
	spinner *pterm.SpinnerPrinter
	loaded  int
	total   int
	done    chan struct{}
	once    sync.Once
}

func newProgress(spinner *pterm.SpinnerPrinter) *progress {
	return &progress{spinner: spinner, done: make(chan struct{})}
}

func (p *progress) SetMetadataLoaded(bool) {}

func (p *progress) SetLoadedCount(n int) { p.loaded = n }

func (p *progress) SetTotalCount(n int) { p.total = n }

func (p *progress) SetParameters([]types.Parameter) {
	if p.total == 0 {
		p.spinner.UpdateText(fmt.Sprintf("Waiting for parameters (%d received)", p.loaded))
		return
	}
	p.spinner.UpdateText(fmt.Sprintf("Loading parameters %d/%d", p.loaded, p.total))
}

func (p *progress) OnComplete(paramsync.Snapshot) {
	p.once.Do(func() { close(p.done) })
}

func filter(params []types.Parameter, search string) []types.Parameter {
	if search == "" {
		return params
	}
	search = strings.ToUpper(search)

	filtered := make([]types.Parameter, 0, len(params))
	for _, p := range params {
		if strings.Contains(strings.ToUpper(p.Name), search) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func renderTable(export parameters.Export) {
	if export.Count == 0 {
		pterm.Info.Println("No parameters matched")
		return
	}

	tableData := pterm.TableData{
		{"Name", "Value", "Units", "Range", "Description"},
	}
	for _, p := range export.Parameters {
		tableData = append(tableData, []string{
			p.Name,
			formatValue(p),
			p.Units,
			formatRange(p.Range),
			truncate(p.ShortDescription, maxDescription),
		})
	}

	pterm.DefaultSection.Println(export.Vehicle)
	pterm.DefaultTable.WithHasHeader().WithData(tableData).Render()
	pterm.Info.Printf("%d parameter(s)\n", export.Count)
}

func formatValue(p types.Parameter) string {
	value := strconv.FormatFloat(p.Value, 'g', -1, 64)
	for _, o := range p.Options {
		if o.Value == p.Value {
			return value + " (" + o.Label + ")"
		}
	}
	if p.ReadOnly {
		return pterm.FgGray.Sprint(value)
	}
	return value
}

func formatRange(r *types.Range) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("%g..%g", r.Low, r.High)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
