package model

// TradingMode selects whether orders are simulated or routed to the real broker.
type TradingMode string

const (
	TradingModeSimulation TradingMode = "SIMULATION"
	TradingModeLive       TradingMode = "LIVE"
)

// TradingModes lists every book the ledger keeps.
var TradingModes = []TradingMode{TradingModeSimulation, TradingModeLive}

func (m TradingMode) String() string { return string(m) }

func (m TradingMode) IsLive() bool { return m == TradingModeLive }

func (m TradingMode) Valid() bool { return m == TradingModeSimulation || m == TradingModeLive }
