package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"aitrade/internal/indicator"
	"aitrade/internal/session"
	"aitrade/internal/strategy"
)

// Decision is one NDJSON journal record: the full input and outcome of
// a single tick's decision for one symbol.
type Decision struct {
	RunID         string                 `json:"run_id"`
	Timestamp     time.Time              `json:"timestamp"`
	Symbol        string                 `json:"symbol"`
	Session       session.Session        `json:"session,omitempty"`
	Bid           float64                `json:"bid,omitempty"`
	Ask           float64                `json:"ask,omitempty"`
	Mid           float64                `json:"mid,omitempty"`
	MACD          float64                `json:"macd"`
	Signal        float64                `json:"signal"`
	Histogram     float64                `json:"histogram"`
	MACDPosition  indicator.MACDPosition `json:"macd_position,omitempty"`
	Crossover     bool                   `json:"crossover,omitempty"`
	Crossunder    bool                   `json:"crossunder,omitempty"`
	PositionSide  strategy.PositionSide  `json:"position_side,omitempty"`
	PositionQty   int                    `json:"position_qty"`
	Intent        strategy.Action        `json:"intent,omitempty"`
	IntentQty     int                    `json:"intent_qty"`
	Reason        string                 `json:"reason,omitempty"`
	Result        string                 `json:"result"`
	RejectReason  string                 `json:"reject_reason,omitempty"`
	OrderID       string                 `json:"order_id,omitempty"`
	ClientOrderID string                 `json:"client_order_id,omitempty"`
	LimitPrice    float64                `json:"limit_price,omitempty"`
	Broker        string                 `json:"broker,omitempty"`
}

type DecisionLogger struct {
	runID  string
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string, runID string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		runID:  runID,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) RunID() string {
	return d.runID
}

func (d *DecisionLogger) Append(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal decision: %v\n", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write decision: %v\n", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush decision log: %v\n", err)
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
