package service

import (
	"strconv"
	"strings"
	"time"

	"trade_engine/internal/models"

	"github.com/bytedance/sonic"
)

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

func subscribeMessage(symbols []string, id int) subscribeRequest {
	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(s)+"@kline_"+string(models.BaseTimeframe))
	}
	return subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: id + 1}
}

type klineEvent struct {
	EventType string       `json:"e"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type klinePayload struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	Closed    bool   `json:"x"`
}

// decodeKlineEvent turns a raw stream frame into a normalized tick.
// Non-kline frames (subscription acks, pings) return ok=false.
func decodeKlineEvent(msg []byte) (models.Tick, bool) {
	var ev klineEvent
	if err := sonic.Unmarshal(msg, &ev); err != nil {
		return models.Tick{}, false
	}
	if ev.EventType != "kline" || ev.Symbol == "" {
		return models.Tick{}, false
	}

	open, err1 := strconv.ParseFloat(ev.Kline.Open, 64)
	high, err2 := strconv.ParseFloat(ev.Kline.High, 64)
	low, err3 := strconv.ParseFloat(ev.Kline.Low, 64)
	closeP, err4 := strconv.ParseFloat(ev.Kline.Close, 64)
	vol, err5 := strconv.ParseFloat(ev.Kline.Volume, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return models.Tick{}, false
	}

	return models.Tick{
		Symbol: ev.Symbol,
		Candle: models.Candle{
			Symbol:    ev.Symbol,
			Timeframe: models.BaseTimeframe,
			OpenTime:  ev.Kline.OpenTime,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closeP,
			Volume:    vol,
		},
		IsClosed:   ev.Kline.Closed,
		ReceivedAt: time.Now(),
	}, true
}
