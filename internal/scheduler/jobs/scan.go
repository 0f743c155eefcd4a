package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/confluence/backend/internal/engine"
	"github.com/wonny/confluence/backend/internal/instrument"
)

// SymbolScanner runs one generate cycle (*engine.Scanner)
type SymbolScanner interface {
	ScanSymbol(ctx context.Context, symbol string) engine.ScanOutcome
}

// ScanJob scans one symbol on a fixed interval
type ScanJob struct {
	scanner  SymbolScanner
	symbol   string
	interval time.Duration
}

// NewScanJobs creates one job per symbol
func NewScanJobs(scanner SymbolScanner, symbols []string, interval time.Duration) []*ScanJob {
	out := make([]*ScanJob, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, &ScanJob{scanner: scanner, symbol: instrument.Normalize(s), interval: interval})
	}
	return out
}

func (j *ScanJob) Name() string     { return "scan_" + j.symbol }
func (j *ScanJob) Schedule() string { return fmt.Sprintf("@every %s", j.interval) }

// Run fails only on infrastructure errors; rejections and skips are normal outcomes
func (j *ScanJob) Run(ctx context.Context) error {
	out := j.scanner.ScanSymbol(ctx, j.symbol)
	return out.Err
}
