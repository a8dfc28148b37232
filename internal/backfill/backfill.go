package backfill

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"trade_engine/internal/models"
	"trade_engine/internal/runtime"
	"trade_engine/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// KlineStore persists fetched history.
type KlineStore interface {
	UpsertMany(ctx context.Context, candles []models.Candle) error
}

// Service loads enough candle history for a symbol's indicator lookbacks to
// become valid, then marks the symbol ready. Until that happens the worker
// pool rejects the symbol's ticks.
type Service struct {
	restURL string
	http    *http.Client
	reg     *runtime.Registry
	klines  KlineStore
	depth   int
}

func New(restURL string, reg *runtime.Registry, klines KlineStore, depth int) *Service {
	return &Service{
		restURL: restURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		reg:     reg,
		klines:  klines,
		depth:   depth,
	}
}

// Bootstrap synchronously fills history for every timeframe the symbol's
// strategy requires (plus the base resolution) and flips the ready flag.
func (s *Service) Bootstrap(ctx context.Context, symbol string) error {
	st := s.reg.Ensure(symbol)
	strat := st.Strategy()
	if strat == nil {
		return fmt.Errorf("backfill %s: no strategy assigned", symbol)
	}

	timeframes := []models.Timeframe{models.BaseTimeframe}
	for _, tf := range strat.Requirements.Timeframes() {
		if tf != models.BaseTimeframe {
			timeframes = append(timeframes, tf)
		}
	}

	for _, tf := range timeframes {
		candles, err := s.fetch(ctx, symbol, tf)
		if err != nil {
			return errors.Wrapf(err, "backfill %s %s", symbol, tf)
		}
		series := st.Series(tf)
		for _, c := range candles {
			series.Upsert(c)
		}
		if err := s.klines.UpsertMany(ctx, candles); err != nil {
			// history is in memory; the store catches up on live flushes
			logger.Error("backfill persist %s %s: %v", symbol, tf, err)
		}
	}

	st.SetReady(true)
	logger.Info("backfill complete %s (%d timeframes)", symbol, len(timeframes))
	return nil
}

func (s *Service) fetch(ctx context.Context, symbol string, tf models.Timeframe) ([]models.Candle, error) {
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d", s.restURL, symbol, tf, s.depth)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("klines status %d: %s", resp.StatusCode, body)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	// rows: [openTime, "open", "high", "low", "close", "volume", ...]
	var rows [][]any
	if err := sonic.Unmarshal(body, &rows); err != nil {
		return nil, err
	}

	out := make([]models.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		ts, ok := row[0].(float64)
		if !ok {
			continue
		}
		open, err1 := parseField(row[1])
		high, err2 := parseField(row[2])
		low, err3 := parseField(row[3])
		closep, err4 := parseField(row[4])
		vol, err5 := parseField(row[5])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			continue
		}
		out = append(out, models.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  tf.AlignMillis(int64(ts)),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closep,
			Volume:    vol,
		})
	}
	return out, nil
}

func parseField(v any) (float64, error) {
	switch t := v.(type) {
	case string:
		return strconv.ParseFloat(t, 64)
	case float64:
		return t, nil
	}
	return 0, fmt.Errorf("unexpected kline field %T", v)
}
