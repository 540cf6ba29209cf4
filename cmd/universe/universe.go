package universe

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/sirupsen/logrus"

	"valueinvestor/src/model"
)

type upserter interface {
	Upsert(ctx context.Context, rows []model.StockFundamental) error
}

// Importer loads the candidate universe from CSV into stock_fundamentals.
type Importer struct {
	Log  *logrus.Entry
	Repo upserter
}

func (i *Importer) ImportFile(ctx context.Context, path string) (int, error) {
	if path == "" {
		path = GetConfig().File
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()
	return i.Import(ctx, f)
}

// Import reads rows, normalises symbols and rejects duplicates before writing anything.
func (i *Importer) Import(ctx context.Context, r io.Reader) (int, error) {
	var rows []model.StockFundamental
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return 0, fmt.Errorf("parse universe csv: %w", err)
	}

	seen := make(map[string]int, len(rows))
	out := make([]model.StockFundamental, 0, len(rows))
	for n, row := range rows {
		line := n + 2
		row.Symbol = strings.ToUpper(strings.TrimSpace(row.Symbol))
		if row.Symbol == "" {
			return 0, fmt.Errorf("universe csv line %d: empty symbol", line)
		}
		if prev, ok := seen[row.Symbol]; ok {
			return 0, fmt.Errorf("universe csv line %d: %s already on line %d", line, row.Symbol, prev)
		}
		seen[row.Symbol] = line
		out = append(out, row)
	}
	if len(out) == 0 {
		return 0, nil
	}

	if err := i.Repo.Upsert(ctx, out); err != nil {
		return 0, fmt.Errorf("store universe: %w", err)
	}

	if i.Log != nil {
		i.Log.WithField("rows", len(out)).Info("universe imported")
	}
	return len(out), nil
}
