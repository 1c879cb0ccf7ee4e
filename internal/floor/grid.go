package floor

import (
	"sync"
)

// Responsive breakpoints for the table grid.
const (
	gridWideViewport   = 1280
	gridMediumViewport = 768
	gridTightViewport  = 640
)

// ColumnsForViewport maps a viewport width to the grid's column count.
func ColumnsForViewport(width int) int {
	switch {
	case width >= gridWideViewport:
		return 4
	case width >= gridMediumViewport:
		return 3
	default:
		return 2
	}
}

// RowGapForViewport maps a viewport width to the vertical gap between rows.
func RowGapForViewport(width int) int {
	if width >= gridTightViewport {
		return 32
	}
	return 12
}

// Viewport is the client-reported scroll state.
type Viewport struct {
	ScrollTop      int `json:"scroll_top"`
	ViewportWidth  int `json:"viewport_width"`
	ViewportHeight int `json:"viewport_height"`
}

// Window is the computed render window: which rows to materialize and where
// each row sits in the scroll space.
type Window struct {
	ColumnCount int `json:"column_count"`
	RowCount    int `json:"row_count"`
	RowGap      int `json:"row_gap"`
	// StartRow/EndRow are inclusive; EndRow is -1 when there is nothing to
	// render.
	StartRow    int   `json:"start_row"`
	EndRow      int   `json:"end_row"`
	RowOffsets  []int `json:"row_offsets"`
	TotalHeight int   `json:"total_height"`
}

// GridLayout virtualizes the table grid. Row heights start from an estimate
// and converge to measured values as rows render; offsets are a prefix sum so
// the visible window is a binary search, not a scan. Measurements reset
// whenever the column count or item count changes, since both reflow every
// row.
type GridLayout struct {
	mu             sync.Mutex
	estimateHeight int
	overscan       int
	measured       map[int]int
	lastColumns    int
	lastItemCount  int
}

func NewGridLayout(estimateHeight, overscan int) *GridLayout {
	if estimateHeight <= 0 {
		estimateHeight = 180
	}
	if overscan < 0 {
		overscan = 0
	}
	return &GridLayout{
		estimateHeight: estimateHeight,
		overscan:       overscan,
		measured:       make(map[int]int),
	}
}

// SetMeasuredRowHeight records a rendered row's real height. Returns true
// when the value changed, meaning offsets need recomputing.
func (g *GridLayout) SetMeasuredRowHeight(row, height int) bool {
	if row < 0 || height <= 0 {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.measured[row] == height {
		return false
	}
	g.measured[row] = height
	return true
}

// ResetMeasurements drops every measured height back to the estimate.
func (g *GridLayout) ResetMeasurements() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.measured = make(map[int]int)
}

func (g *GridLayout) rowHeightLocked(row int) int {
	if h, ok := g.measured[row]; ok && h > 0 {
		return h
	}
	return g.estimateHeight
}

// ComputeWindow derives the render window for itemCount items under the given
// viewport.
func (g *GridLayout) ComputeWindow(itemCount int, vp Viewport) Window {
	g.mu.Lock()
	defer g.mu.Unlock()

	columns := ColumnsForViewport(vp.ViewportWidth)
	gap := RowGapForViewport(vp.ViewportWidth)

	if columns != g.lastColumns || itemCount != g.lastItemCount {
		g.measured = make(map[int]int)
		g.lastColumns = columns
		g.lastItemCount = itemCount
	}

	if itemCount <= 0 {
		return Window{ColumnCount: columns, RowGap: gap, StartRow: 0, EndRow: -1}
	}

	rowCount := (itemCount + columns - 1) / columns
	offsets := make([]int, rowCount)
	total := 0
	for row := 0; row < rowCount; row++ {
		offsets[row] = total
		total += g.rowHeightLocked(row)
		if row < rowCount-1 {
			total += gap
		}
	}

	scrollTop := vp.ScrollTop
	if scrollTop < 0 {
		scrollTop = 0
	}
	startRow := findRowForOffset(offsets, scrollTop) - g.overscan
	endRow := findRowForOffset(offsets, scrollTop+vp.ViewportHeight) + g.overscan
	startRow = clampRow(startRow, rowCount)
	endRow = clampRow(endRow, rowCount)

	return Window{
		ColumnCount: columns,
		RowCount:    rowCount,
		RowGap:      gap,
		StartRow:    startRow,
		EndRow:      endRow,
		RowOffsets:  offsets,
		TotalHeight: total,
	}
}

// findRowForOffset returns the last row whose offset is at or above the
// target position.
func findRowForOffset(offsets []int, target int) int {
	lo, hi := 0, len(offsets)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if offsets[mid] <= target {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

func clampRow(row, rowCount int) int {
	if row < 0 {
		return 0
	}
	if row > rowCount-1 {
		return rowCount - 1
	}
	return row
}

// RenderedRow is one materialized grid row.
type RenderedRow struct {
	Index int           `json:"index"`
	Top   int           `json:"top"`
	Keys  []string      `json:"keys"`
	Cells []interface{} `json:"cells"`
}

// RenderWindow materializes only the rows inside the window. itemKey and
// renderItem are invoked solely for visible items; everything outside the
// window stays unbuilt.
func RenderWindow(win Window, itemCount int, itemKey func(int) string, renderItem func(int) interface{}) []RenderedRow {
	if win.EndRow < win.StartRow || itemCount <= 0 || win.ColumnCount <= 0 {
		return nil
	}
	rows := make([]RenderedRow, 0, win.EndRow-win.StartRow+1)
	for row := win.StartRow; row <= win.EndRow; row++ {
		top := 0
		if row < len(win.RowOffsets) {
			top = win.RowOffsets[row]
		}
		r := RenderedRow{Index: row, Top: top}
		first := row * win.ColumnCount
		for col := 0; col < win.ColumnCount; col++ {
			idx := first + col
			if idx >= itemCount {
				break
			}
			r.Keys = append(r.Keys, itemKey(idx))
			r.Cells = append(r.Cells, renderItem(idx))
		}
		rows = append(rows, r)
	}
	return rows
}
