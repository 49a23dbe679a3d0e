package symphony

import (
	"github.com/yanun0323/decimal"
)

type loginRequest struct {
	AppKey    string `json:"appKey"`
	SecretKey string `json:"secretKey"`
	Source    string `json:"source"`
}

type loginResponse struct {
	Type   string `json:"type"`
	Result struct {
		Token  string `json:"token"`
		UserID string `json:"userID"`
	} `json:"result"`
	Description string `json:"description"`
}

type placeOrderRequest struct {
	ExchangeSegment      string  `json:"exchangeSegment"`
	ExchangeInstrumentID string  `json:"exchangeInstrumentID"`
	OrderSide            string  `json:"orderSide"`
	OrderType            string  `json:"orderType"`
	ProductType          string  `json:"productType"`
	TimeInForce          string  `json:"timeInForce"`
	OrderQuantity        int     `json:"orderQuantity"`
	LimitPrice           float64 `json:"limitPrice"`
	DisclosedQuantity    int     `json:"disclosedQuantity"`
	StopPrice            float64 `json:"stopPrice"`
}

type placeOrderResponse struct {
	Type   string `json:"type"`
	Result struct {
		AppOrderID int64 `json:"AppOrderID"`
	} `json:"result"`
	Description string `json:"description"`
}

type orderBookResponse struct {
	Type   string            `json:"type"`
	Result []orderBookRecord `json:"result"`
}

type orderBookRecord struct {
	AppOrderID              int64           `json:"AppOrderID"`
	OrderStatus             string          `json:"OrderStatus"`
	OrderSide               string          `json:"OrderSide"`
	OrderType               string          `json:"OrderType"`
	OrderQuantity           int             `json:"OrderQuantity"`
	LeavesQuantity          int             `json:"LeavesQuantity"`
	OrderAverageTradedPrice decimal.Decimal `json:"OrderAverageTradedPrice"`
	ExchangeTransactTime    string          `json:"ExchangeTransactTime"`
}

type subscribeRequest struct {
	Instruments []subscribeInstrument `json:"instruments"`
	MessageCode int                   `json:"xtsMessageCode"`
}

type subscribeInstrument struct {
	ExchangeSegment      string `json:"exchangeSegment"`
	ExchangeInstrumentID string `json:"exchangeInstrumentID"`
}

// tickPayload is one streamed quote. LastTradedPrice arrives as a
// decimal string.
type tickPayload struct {
	MessageCode          int             `json:"MessageCode"`
	ExchangeSegment      string          `json:"ExchangeSegment"`
	ExchangeInstrumentID string          `json:"ExchangeInstrumentID"`
	LastTradedPrice      decimal.Decimal `json:"LastTradedPrice"`
	LastTradedQuantity   int64           `json:"LastTradedQuantity"`
	ExchangeTimeStamp    int64           `json:"ExchangeTimeStamp"`
}
