package ui

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/mum4k/termdash"
	"github.com/mum4k/termdash/cell"
	"github.com/mum4k/termdash/container"
	"github.com/mum4k/termdash/container/grid"
	"github.com/mum4k/termdash/linestyle"
	"github.com/mum4k/termdash/terminal/tcell"
	"github.com/mum4k/termdash/terminal/terminalapi"
	"github.com/mum4k/termdash/widgets/barchart"
	"github.com/mum4k/termdash/widgets/button"
	"github.com/mum4k/termdash/widgets/linechart"
	"github.com/mum4k/termdash/widgets/text"

	"github.com/HyperCogAI/hypercognition-sub001/internal/exchange"
	"github.com/HyperCogAI/hypercognition-sub001/internal/manager"
)

const (
	redrawInterval = 250 * time.Millisecond
	maxHistorySize = 50
)

// CoinData is one cross-exchange quote for a symbol.
type CoinData struct {
	Timestamp    time.Time
	Symbol       string
	BuyExchange  exchange.Type
	SellExchange exchange.Type
	BuyPrice     float64
	SellPrice    float64
	Profit       float64
	Spread       float64
}

// chartMode represents the current view mode of the line chart
type chartMode int

const (
	modeAll chartMode = iota
	modeSingle
)

type Dashboard struct {
	exchanges      []exchange.Type
	coins          []string
	exchangeWidget map[exchange.Type]*text.Text
	coinWidgets    map[string]*text.Text
	barChart       *barchart.BarChart
	lineChart      *linechart.LineChart
	lineChartBtn   map[string]*button.Button
	updateChan     chan CoinData
	statusChan     chan manager.Status
	spreadsHistory map[string][]float64
	profits        map[string]float64
	chartColors    []cell.Color
	selectedCoin   string
	mode           chartMode
	mu             sync.RWMutex
}

// NewDashboard lays out one panel per exchange and one per symbol.
func NewDashboard(exchanges []exchange.Type, coins []string) *Dashboard {
	return &Dashboard{
		exchanges: exchanges,
		coins:     coins,
		chartColors: []cell.Color{
			cell.ColorGreen,
			cell.ColorBlue,
			cell.ColorCyan,
			cell.ColorMagenta,
			cell.ColorYellow,
		},
		exchangeWidget: make(map[exchange.Type]*text.Text),
		coinWidgets:    make(map[string]*text.Text),
		lineChartBtn:   make(map[string]*button.Button),
		updateChan:     make(chan CoinData, 100),
		statusChan:     make(chan manager.Status, 1),
		spreadsHistory: make(map[string][]float64),
		profits:        make(map[string]float64),
		mode:           modeAll,
	}
}

func (d *Dashboard) InitWidgets() error {
	for _, t := range d.exchanges {
		widget, err := text.New(text.WrapAtWords())
		if err != nil {
			return fmt.Errorf("failed to create text widget for %s: %v", t, err)
		}
		d.exchangeWidget[t] = widget
	}

	for _, coin := range d.coins {
		widget, err := text.New(text.RollContent(), text.WrapAtWords())
		if err != nil {
			return fmt.Errorf("failed to create text widget for %s: %v", coin, err)
		}
		d.coinWidgets[coin] = widget
	}

	barChart, err := barchart.New(
		barchart.BarColors(d.chartColors),
		barchart.ShowValues(),
		barchart.Labels(d.coins),
	)
	if err != nil {
		return fmt.Errorf("failed to create bar chart: %v", err)
	}
	d.barChart = barChart

	lineChart, err := linechart.New(
		linechart.AxesCellOpts(cell.FgColor(cell.ColorRed)),
		linechart.YLabelCellOpts(cell.FgColor(cell.ColorGreen)),
		linechart.XLabelCellOpts(cell.FgColor(cell.ColorGreen)),
	)
	if err != nil {
		return fmt.Errorf("failed to create line chart: %v", err)
	}
	d.lineChart = lineChart

	if err := d.initLineChartButtons(); err != nil {
		return fmt.Errorf("failed to create line chart buttons: %v", err)
	}
	return nil
}

func (d *Dashboard) initLineChartButtons() error {
	allButton, err := button.New("All Coins", func() error {
		d.mu.Lock()
		d.mode = modeAll
		d.updateLineChart()
		d.mu.Unlock()
		return nil
	},
		button.WidthFor("All Coins"),
		button.Height(1),
		button.FillColor(cell.ColorNumber(220)),
	)
	if err != nil {
		return fmt.Errorf("failed to create All button: %v", err)
	}
	d.lineChartBtn["All"] = allButton

	for _, coin := range d.coins {
		coin := coin
		btn, err := button.New(coin, func() error {
			d.selectCoin(coin)
			return nil
		},
			button.WidthFor(coin),
			button.Height(1),
			button.FillColor(cell.ColorNumber(196)),
		)
		if err != nil {
			return fmt.Errorf("failed to create button for %s: %v", coin, err)
		}
		d.lineChartBtn[coin] = btn
	}
	return nil
}

func (d *Dashboard) selectCoin(coin string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = modeSingle
	d.selectedCoin = coin
	d.updateLineChart()
}

func (d *Dashboard) processStatus(st manager.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.exchanges {
		widget := d.exchangeWidget[t]
		if widget == nil {
			continue
		}
		widget.Reset()

		es, ok := st.Exchange(t)
		if !ok {
			widget.Write("not registered\n", text.WriteCellOpts(cell.FgColor(cell.ColorNumber(244))))
			continue
		}

		state, color := "connected", cell.ColorGreen
		if !es.Connected {
			state, color = "disconnected", cell.ColorRed
		}
		widget.Write(state+"\n", text.WriteCellOpts(cell.FgColor(color)))
		if es.Active {
			widget.Write("active\n", text.WriteCellOpts(cell.FgColor(cell.ColorYellow)))
		}
		widget.Write(fmt.Sprintf("Heartbeat: %s\n", es.LastHeartbeat.Format("15:04:05")))
	}
}

func (d *Dashboard) processCoinUpdate(coinData CoinData) {
	d.mu.Lock()
	defer d.mu.Unlock()

	widget, exists := d.coinWidgets[coinData.Symbol]
	if exists {
		widget.Reset()
		widget.Write(fmt.Sprintf(`
Buy Exchange:  %s
Buy Price:     $%.4f
Sell Exchange: %s
Sell Price:    $%.4f
Profit:        %.4f%%
Spread:        %.4f%%
Time:          %s
`,
			coinData.BuyExchange, coinData.BuyPrice,
			coinData.SellExchange, coinData.SellPrice,
			coinData.Profit, coinData.Spread,
			coinData.Timestamp.Format("15:04:05"),
		))
	}

	d.profits[coinData.Symbol] = coinData.Profit

	history := d.spreadsHistory[coinData.Symbol]
	if len(history) >= maxHistorySize {
		history = history[1:]
	}
	d.spreadsHistory[coinData.Symbol] = append(history, coinData.Spread)

	barData := make([]int, len(d.coins))
	for i, coin := range d.coins {
		barData[i] = int(math.Abs(d.profits[coin]) * 1000)
	}
	d.barChart.Values(barData, maxBar(barData))

	d.updateLineChart()
}

// maxBar keeps the chart scale at least 1000 (1%).
func maxBar(values []int) int {
	m := 1000
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// updateLineChart redraws the spread series. Callers hold d.mu.
func (d *Dashboard) updateLineChart() {
	for _, coin := range d.coins {
		d.lineChart.Series(coin, []float64{}, linechart.SeriesCellOpts(cell.FgColor(cell.ColorDefault)))
	}

	switch d.mode {
	case modeAll:
		for i, coin := range d.coins {
			if spreads := d.spreadsHistory[coin]; len(spreads) > 0 {
				d.lineChart.Series(coin,
					spreads,
					linechart.SeriesCellOpts(cell.FgColor(d.chartColors[i%len(d.chartColors)])),
				)
			}
		}
	case modeSingle:
		if spreads := d.spreadsHistory[d.selectedCoin]; len(spreads) > 0 {
			colorIdx := 0
			for i, coin := range d.coins {
				if coin == d.selectedCoin {
					colorIdx = i
					break
				}
			}
			d.lineChart.Series(
				d.selectedCoin,
				spreads,
				linechart.SeriesCellOpts(cell.FgColor(d.chartColors[colorIdx%len(d.chartColors)])),
			)
		}
	}
}

func CreateGridLayout(d *Dashboard) ([]container.Option, error) {
	builder := grid.New()

	buttonWidth := 80 / max(len(d.coins), 1)
	buttonElements := []grid.Element{
		grid.ColWidthPerc(20,
			grid.Widget(d.lineChartBtn["All"],
				container.Border(linestyle.Light),
			),
		),
	}
	for _, coin := range d.coins {
		buttonElements = append(buttonElements,
			grid.ColWidthPerc(buttonWidth,
				grid.Widget(d.lineChartBtn[coin],
					container.Border(linestyle.Light),
				),
			),
		)
	}

	builder.Add(
		grid.RowHeightPerc(15, exchangeWidgetsRow(d)...),
		grid.RowHeightPerc(25, coinWidgetsRow(d)...),
		grid.RowHeightPerc(55,
			grid.ColWidthPerc(50,
				grid.Widget(d.barChart,
					container.Border(linestyle.Light),
					container.BorderTitle(" Net Profit (bp x10) "),
				),
			),
			grid.ColWidthPerc(50,
				grid.RowHeightPerc(15,
					buttonElements...,
				),
				grid.RowHeightPerc(85,
					grid.Widget(d.lineChart,
						container.Border(linestyle.Light),
						container.BorderTitle(" Spread History % "),
					),
				),
			),
		),
	)

	return builder.Build()
}

func exchangeWidgetsRow(d *Dashboard) []grid.Element {
	width := 99 / max(len(d.exchanges), 1)
	var elements []grid.Element
	for _, t := range d.exchanges {
		elements = append(elements,
			grid.ColWidthPerc(width,
				grid.Widget(d.exchangeWidget[t],
					container.Border(linestyle.Light),
					container.BorderTitle(fmt.Sprintf(" %s ", t)),
				),
			),
		)
	}
	return elements
}

func coinWidgetsRow(d *Dashboard) []grid.Element {
	width := 99 / max(len(d.coins), 1)
	var elements []grid.Element
	for _, coin := range d.coins {
		elements = append(elements,
			grid.ColWidthPerc(width,
				grid.Widget(d.coinWidgets[coin],
					container.Border(linestyle.Light),
					container.BorderTitle(fmt.Sprintf(" %s Arbitrage ", coin)),
				),
			),
		)
	}
	return elements
}

func (d *Dashboard) StartUpdateListener(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case coinData := <-d.updateChan:
				d.processCoinUpdate(coinData)
			case st := <-d.statusChan:
				d.processStatus(st)
			}
		}
	}()
}

func (d *Dashboard) SendCoinData(data CoinData) {
	select {
	case d.updateChan <- data:
	default:
		// full buffer: drop, the next tick carries a fresher quote
	}
}

// SendStatus queues st, replacing any status not yet drawn.
func (d *Dashboard) SendStatus(st manager.Status) {
	select {
	case <-d.statusChan:
	default:
	}
	select {
	case d.statusChan <- st:
	default:
	}
}

func RunDashboard(ctx context.Context, d *Dashboard) error {
	t, err := tcell.New(tcell.ColorMode(terminalapi.ColorMode256))
	if err != nil {
		return fmt.Errorf("failed to initialize terminal: %v", err)
	}
	defer t.Close()

	gridOpts, err := CreateGridLayout(d)
	if err != nil {
		return fmt.Errorf("failed to build grid layout: %v", err)
	}

	c, err := container.New(t, gridOpts...)
	if err != nil {
		return fmt.Errorf("failed to create root container: %v", err)
	}

	return termdash.Run(ctx, t, c, termdash.RedrawInterval(redrawInterval))
}
