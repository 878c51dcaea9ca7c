// Package backtester implements the day-stepped deterministic portfolio
// simulator: refresh positions, evaluate exits, evaluate entries, snapshot.
package backtester

import (
	"time"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// portfolio tracks cash and open positions for one simulator run. Closed
// trades accumulate in closedTrades for later metric computation. Open
// positions are tracked in insertion order so exit evaluation and the
// resulting trade list are reproducible run to run. Short entries post the
// entry notional as collateral (cash is debited just like a long); the
// position is then marked as collateral plus unrealized short gain.
type portfolio struct {
	cash         decimal.Decimal
	open         map[string]*types.Trade // keyed by ticker, one open position per ticker
	openOrder    []string
	closedTrades []types.Trade
}

func newPortfolio(initialCapital decimal.Decimal) *portfolio {
	return &portfolio{
		cash: initialCapital,
		open: make(map[string]*types.Trade),
	}
}

// openTickers returns the tickers with open positions, oldest entry first.
func (p *portfolio) openTickers() []string {
	out := make([]string, len(p.openOrder))
	copy(out, p.openOrder)
	return out
}

func (p *portfolio) openPosition(trade types.Trade) {
	p.cash = p.cash.Sub(trade.Notional()).Sub(trade.Fee)
	t := trade
	p.open[trade.Ticker] = &t
	p.openOrder = append(p.openOrder, trade.Ticker)
}

func (p *portfolio) closePosition(ticker string, exitDate time.Time, exitPrice, exitFee, borrowCost decimal.Decimal) {
	trade, ok := p.open[ticker]
	if !ok {
		return
	}
	date := exitDate
	trade.ExitDate = &date
	trade.ExitPrice = exitPrice
	trade.ExitFee = exitFee
	trade.BorrowCost = borrowCost
	trade.Status = types.TradeStatusClosed

	exitValue := exitPrice.Mul(trade.Quantity)
	if trade.Short {
		// collateral back plus (entry - exit) * qty, net of buy-back fee
		// and borrow cost
		proceeds := trade.Notional().Mul(decimal.NewFromInt(2)).Sub(exitValue).Sub(exitFee).Sub(borrowCost)
		p.cash = p.cash.Add(proceeds)
		trade.PnL = trade.Notional().Sub(exitValue).Sub(exitFee).Sub(borrowCost).Sub(trade.Fee)
	} else {
		proceeds := exitValue.Sub(exitFee).Sub(borrowCost)
		p.cash = p.cash.Add(proceeds)
		trade.PnL = proceeds.Sub(trade.Notional()).Sub(trade.Fee)
	}

	p.closedTrades = append(p.closedTrades, *trade)
	delete(p.open, ticker)
	for i, t := range p.openOrder {
		if t == ticker {
			p.openOrder = append(p.openOrder[:i], p.openOrder[i+1:]...)
			break
		}
	}
}

// positionsValue marks every open position to the given closing price map.
func (p *portfolio) positionsValue(closes map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for ticker, trade := range p.open {
		price, ok := closes[ticker]
		if !ok {
			price = trade.Price
		}
		value := price.Mul(trade.Quantity)
		if trade.Short {
			value = trade.Notional().Sub(value).Add(trade.Notional())
		}
		total = total.Add(value)
	}
	return total
}

func (p *portfolio) equity(closes map[string]decimal.Decimal) decimal.Decimal {
	return p.cash.Add(p.positionsValue(closes))
}
