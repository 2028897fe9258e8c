package bybit

// BaseResponse - стандартная обертка ответа Bybit
type BaseResponse[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
}

// --- REST ---

// InstrumentInfoResponse - /v5/market/instruments-info
type InstrumentInfoResponse struct {
	Category       string `json:"category"`
	NextPageCursor string `json:"nextPageCursor"`
	List           []struct {
		Symbol    string `json:"symbol"`
		Status    string `json:"status"` // "Trading"
		BaseCoin  string `json:"baseCoin"`
		QuoteCoin string `json:"quoteCoin"`
	} `json:"list"`
}

// --- WebSocket ---

type wsRequest struct {
	Op   string   `json:"op"`
	Args []string `json:"args,omitempty"`
}

// wsFrame - общий вид входящего сообщения. Ответы на subscribe/ping приходят с "op",
// данные - с "topic" и "data".
type wsFrame struct {
	Op      string         `json:"op"`
	Success *bool          `json:"success"`
	RetMsg  string         `json:"ret_msg"`
	Topic   string         `json:"topic"`
	Type    string         `json:"type"` // snapshot / delta
	TS      int64          `json:"ts"`
	Data    *orderbookData `json:"data"`
}

// orderbookData - orderbook.<depth>.<SYMBOL>, кортежи [price, size]
type orderbookData struct {
	Symbol   string     `json:"s"`
	Asks     [][]string `json:"a"`
	Bids     [][]string `json:"b"`
	UpdateID int64      `json:"u"`
	Seq      int64      `json:"seq"`
}
