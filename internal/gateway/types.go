package gateway

import (
	"fmt"
	"net/url"
	"strconv"
)

// ResultCodeSuccess is the gateway's code for a completed payment.
const ResultCodeSuccess = 0

// CreateRequest is the outbound order-creation payload.
type CreateRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	OrderID     string `json:"orderId"`
	OrderInfo   string `json:"orderInfo"`
	RedirectURL string `json:"redirectUrl"`
	IPNURL      string `json:"ipnUrl"`
	Lang        string `json:"lang"`
	RequestType string `json:"requestType"`
	AutoCapture bool   `json:"autoCapture"`
	ExtraData   string `json:"extraData"`
	Signature   string `json:"signature"`
}

func (r CreateRequest) SignatureFields() map[string]string {
	return map[string]string{
		"amount":      strconv.FormatInt(r.Amount, 10),
		"autoCapture": strconv.FormatBool(r.AutoCapture),
		"extraData":   r.ExtraData,
		"ipnUrl":      r.IPNURL,
		"lang":        r.Lang,
		"orderId":     r.OrderID,
		"orderInfo":   r.OrderInfo,
		"partnerCode": r.PartnerCode,
		"redirectUrl": r.RedirectURL,
		"requestId":   r.RequestID,
		"requestType": r.RequestType,
	}
}

type CreateResponse struct {
	PartnerCode string `json:"partnerCode"`
	OrderID     string `json:"orderId"`
	RequestID   string `json:"requestId"`
	Amount      int64  `json:"amount"`
	ResultCode  int    `json:"resultCode"`
	Message     string `json:"message"`
	PayURL      string `json:"payUrl"`

	Raw []byte `json:"-"`
}

// QueryRequest is the outbound status-query payload.
type QueryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

func (r QueryRequest) SignatureFields() map[string]string {
	return map[string]string{
		"lang":        r.Lang,
		"orderId":     r.OrderID,
		"partnerCode": r.PartnerCode,
		"requestId":   r.RequestID,
	}
}

type QueryResponse struct {
	OrderID    string `json:"orderId"`
	RequestID  string `json:"requestId"`
	Amount     int64  `json:"amount"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	TransID    int64  `json:"transId"`

	Raw []byte `json:"-"`
}

// CallbackPayload is the normalized shape of both inbound result channels:
// the webhook posts it as JSON, the return redirect carries the same fields
// URL-encoded in the query string. Optional fields left unset contribute
// empty strings to the canonical signature string, matching what the gateway
// signs when it omits them.
type CallbackPayload struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	OrderInfo    string `json:"orderInfo"`
	OrderType    string `json:"orderType"`
	TransID      int64  `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType"`
	ResponseTime int64  `json:"responseTime"`
	ExtraData    string `json:"extraData"`
	Signature    string `json:"signature"`
}

func (p CallbackPayload) SignatureFields() map[string]string {
	return map[string]string{
		"amount":       strconv.FormatInt(p.Amount, 10),
		"extraData":    p.ExtraData,
		"message":      p.Message,
		"orderId":      p.OrderID,
		"orderInfo":    p.OrderInfo,
		"orderType":    p.OrderType,
		"partnerCode":  p.PartnerCode,
		"payType":      p.PayType,
		"requestId":    p.RequestID,
		"responseTime": strconv.FormatInt(p.ResponseTime, 10),
		"resultCode":   strconv.Itoa(p.ResultCode),
		"transId":      strconv.FormatInt(p.TransID, 10),
	}
}

// ParseCallbackQuery builds a CallbackPayload from return-redirect query
// parameters. url.Values already holds the percent-decoded values; decoding
// must happen before canonicalization or verification systematically fails.
func ParseCallbackQuery(values url.Values) (CallbackPayload, error) {
	p := CallbackPayload{
		PartnerCode: values.Get("partnerCode"),
		OrderID:     values.Get("orderId"),
		RequestID:   values.Get("requestId"),
		OrderInfo:   values.Get("orderInfo"),
		OrderType:   values.Get("orderType"),
		Message:     values.Get("message"),
		PayType:     values.Get("payType"),
		ExtraData:   values.Get("extraData"),
		Signature:   values.Get("signature"),
	}

	var err error
	if p.Amount, err = parseInt64(values, "amount"); err != nil {
		return p, err
	}
	if p.TransID, err = parseInt64(values, "transId"); err != nil {
		return p, err
	}
	if p.ResponseTime, err = parseInt64(values, "responseTime"); err != nil {
		return p, err
	}
	rc, err := parseInt64(values, "resultCode")
	if err != nil {
		return p, err
	}
	p.ResultCode = int(rc)

	return p, nil
}

func parseInt64(values url.Values, key string) (int64, error) {
	raw := values.Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
