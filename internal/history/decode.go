package history

import (
	"encoding/json"
	"strconv"

	"github.com/yanun0323/decimal"
	"github.com/yanun0323/errors"

	"main/internal/model"
	"main/internal/model/enum"
)

// apiResponse is the history endpoint envelope. Each result row is the
// positional array [exchange, timestamp, price, volume, side] with an
// optional trailing type; numeric fields may arrive as JSON strings.
type apiResponse struct {
	Results [][]json.RawMessage `json:"results"`
	Error   string              `json:"error"`
}

func decodeRemoteError(body []byte) string {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return ""
	}
	return resp.Error
}

func decodeResults(body []byte) ([]model.Trade, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode history response")
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	trades := make([]model.Trade, 0, len(resp.Results))
	for i, row := range resp.Results {
		trade, err := decodeRow(row)
		if err != nil {
			return nil, errors.Wrap(err, "decode history row").With("row", i)
		}
		trades = append(trades, trade)
	}
	return trades, nil
}

func decodeRow(row []json.RawMessage) (model.Trade, error) {
	if len(row) < 5 {
		return model.Trade{}, errors.Errorf("row has %d fields, want 5", len(row))
	}

	var exchange string
	if err := json.Unmarshal(row[0], &exchange); err != nil {
		return model.Trade{}, errors.Wrap(err, "exchange")
	}
	ts, err := coerceFloat(row[1])
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "timestamp")
	}
	price, err := coerceFloat(row[2])
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "price")
	}
	volume, err := coerceFloat(row[3])
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "volume")
	}
	side, err := coerceFloat(row[4])
	if err != nil {
		return model.Trade{}, errors.Wrap(err, "side")
	}

	trade := model.Trade{
		Exchange:  exchange,
		Timestamp: int64(ts),
		Price:     price,
		Volume:    volume,
		Side:      enum.SideFromInt(int64(side)),
	}
	if len(row) > 5 {
		var tradeType string
		if err := json.Unmarshal(row[5], &tradeType); err == nil {
			trade.Type = tradeType
		}
	}
	return trade, nil
}

// coerceFloat accepts both JSON numbers and string-encoded decimals.
func coerceFloat(raw json.RawMessage) (float64, error) {
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(d.String(), 64)
}
