package core

import (
	"strconv"
	"time"
)

// Strategy is a named, versioned piece of user-authored trading logic stored server-side
type Strategy struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Code        string    `json:"code"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

// Label returns a short human readable form, e.g. "#3 momentum (v2)"
func (s Strategy) Label() string {
	return "#" + strconv.Itoa(s.ID) + " " + s.Name + " (v" + strconv.Itoa(s.Version) + ")"
}

// StrategyInput is the body for creating or updating a strategy
type StrategyInput struct {
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"max=1000"`
	Code        string `json:"code" validate:"required"`
}

// Credentials is a login pair
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Token is the response of a successful login
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Dataset describes an uploaded dataset as the backend parsed it
type Dataset struct {
	Filename string   `json:"filename"`
	Columns  []string `json:"columns"`
	Rows     int      `json:"rows"`
}

// BacktestRequest asks the backend to run a strategy against an uploaded dataset
type BacktestRequest struct {
	StrategyID int    `json:"strategy_id" validate:"required,gt=0"`
	Filename   string `json:"filename" validate:"required"`
}

// BacktestResult holds the profit/loss metrics of a backtest run
type BacktestResult struct {
	StrategyID  int     `json:"strategy_id"`
	ProfitLoss  float64 `json:"profit_loss"`
	TotalReturn float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	MaxDrawdown float64 `json:"max_drawdown"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	TotalTrades int     `json:"total_trades"`
}

// IsProfitable returns true if the run ended with a net gain
func (r BacktestResult) IsProfitable() bool {
	return r.ProfitLoss > 0
}
