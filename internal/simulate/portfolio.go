package simulate

import (
	"math"
	"sort"
	"time"
)

// Direction 表示成交方向。
type Direction string

const (
	DirectionBuy  Direction = "Buy"
	DirectionSell Direction = "Sell"
)

// Fill 记录一笔成交。
type Fill struct {
	Symbol    string
	Direction Direction
	Quantity  float64
	Price     float64 // 含滑点的实际成交价
	Fee       float64
	Time      time.Time
}

// Holding 表示单个标的的持仓。
type Holding struct {
	Quantity     float64
	AveragePrice float64
}

// Portfolio 维护现金与持仓账本。
// 不做购买力约束：成交总是成功，现金允许为负。
type Portfolio struct {
	cash     float64
	holdings map[string]*Holding
	fills    []Fill
	fees     FeeModel
	slippage SlippageModel
}

// NewPortfolio 创建组合账本。
func NewPortfolio(initialCash float64, fees FeeModel, slippage SlippageModel) *Portfolio {
	return &Portfolio{
		cash:     initialCash,
		holdings: make(map[string]*Holding),
		fees:     fees,
		slippage: slippage,
	}
}

// Execute 以给定报价成交指定数量（正数买入、负数卖出），返回成交记录。
func (p *Portfolio) Execute(symbol string, quantity, price, volume float64, ts time.Time) Fill {
	direction := DirectionBuy
	if quantity < 0 {
		direction = DirectionSell
	}

	fillPrice := price
	if p.slippage != nil {
		offset := p.slippage.Slippage(price, quantity, volume)
		if direction == DirectionBuy {
			fillPrice += offset
		} else {
			fillPrice -= offset
		}
	}

	fee := 0.0
	if p.fees != nil {
		fee = p.fees.Fee(quantity, fillPrice)
	}

	p.cash -= quantity*fillPrice + fee
	p.applyToHolding(symbol, quantity, fillPrice)

	fill := Fill{
		Symbol:    symbol,
		Direction: direction,
		Quantity:  quantity,
		Price:     fillPrice,
		Fee:       fee,
		Time:      ts,
	}
	p.fills = append(p.fills, fill)
	return fill
}

func (p *Portfolio) applyToHolding(symbol string, quantity, price float64) {
	h, ok := p.holdings[symbol]
	if !ok {
		h = &Holding{}
		p.holdings[symbol] = h
	}

	newQty := h.Quantity + quantity
	if math.Abs(newQty) < 1e-9 {
		delete(p.holdings, symbol)
		return
	}

	switch {
	case h.Quantity == 0:
		h.AveragePrice = price
	case sameSign(h.Quantity, quantity):
		// 同向加仓，按数量加权平均
		h.AveragePrice = (h.AveragePrice*math.Abs(h.Quantity) + price*math.Abs(quantity)) /
			(math.Abs(h.Quantity) + math.Abs(quantity))
	case sameSign(newQty, quantity):
		// 反向穿越零点，成本价重置为本次成交价
		h.AveragePrice = price
	}
	// 仅减仓时成本价保持不变
	h.Quantity = newQty
}

// Cash 返回当前现金。
func (p *Portfolio) Cash() float64 {
	return p.cash
}

// Holding 返回某标的的持仓。
func (p *Portfolio) Holding(symbol string) (Holding, bool) {
	h, ok := p.holdings[symbol]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Symbols 返回当前有持仓的标的，按字母序。
func (p *Portfolio) Symbols() []string {
	symbols := make([]string, 0, len(p.holdings))
	for symbol := range p.holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols
}

// TotalValue 按给定标价函数计算组合总价值。
func (p *Portfolio) TotalValue(markPrice func(symbol string) float64) float64 {
	total := p.cash
	for symbol, h := range p.holdings {
		total += h.Quantity * markPrice(symbol)
	}
	return total
}

// Fills 返回全部成交记录。
func (p *Portfolio) Fills() []Fill {
	return append([]Fill(nil), p.fills...)
}

func sameSign(a, b float64) bool {
	if a == 0 || b == 0 {
		return false
	}
	return (a > 0) == (b > 0)
}
