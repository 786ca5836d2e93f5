package gateway

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCallback() CallbackPayload {
	return CallbackPayload{
		PartnerCode:  "VISTREAM",
		OrderID:      "ord-123",
		RequestID:    "ord-123",
		Amount:       129000,
		OrderInfo:    "standard monthly",
		OrderType:    "wallet",
		TransID:      4088878653,
		ResultCode:   0,
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: 1700000000000,
		ExtraData:    "",
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	create := CreateRequest{
		PartnerCode: "VISTREAM",
		RequestID:   "req-1",
		Amount:      129000,
		OrderID:     "ord-1",
		OrderInfo:   "standard monthly",
		RedirectURL: "https://vistream.example/payments/return",
		IPNURL:      "https://vistream.example/payments/ipn",
		Lang:        "vi",
		RequestType: "captureWallet",
		AutoCapture: true,
	}
	query := QueryRequest{
		PartnerCode: "VISTREAM",
		RequestID:   "req-1",
		OrderID:     "ord-1",
		Lang:        "vi",
	}

	cases := []struct {
		name     string
		fields   map[string]string
		fieldSet []string
	}{
		{"create", create.SignatureFields(), CreateFields},
		{"callback", sampleCallback().SignatureFields(), CallbackFields},
		{"query", query.SignatureFields(), QueryFields},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			digest := Sign("secret-key", tc.fields, tc.fieldSet)
			require.Len(t, digest, 64)
			require.True(t, Verify("secret-key", tc.fields, tc.fieldSet, digest))
			require.False(t, Verify("other-key", tc.fields, tc.fieldSet, digest))
		})
	}
}

func TestVerify_TamperedFieldFails(t *testing.T) {
	p := sampleCallback()
	digest := Sign("secret-key", p.SignatureFields(), CallbackFields)

	p.Amount = 129001
	require.False(t, Verify("secret-key", p.SignatureFields(), CallbackFields, digest))
}

func TestVerify_TamperedDigestFails(t *testing.T) {
	p := sampleCallback()
	digest := Sign("secret-key", p.SignatureFields(), CallbackFields)

	for i := range digest {
		tampered := []byte(digest)
		if tampered[i] == '0' {
			tampered[i] = '1'
		} else {
			tampered[i] = '0'
		}
		require.False(t, Verify("secret-key", p.SignatureFields(), CallbackFields, string(tampered)), "flipped byte %d", i)
	}
}

func TestSign_AbsentFieldsAsEmptyString(t *testing.T) {
	full := map[string]string{"amount": "1000", "extraData": "", "orderId": "ord-9"}
	sparse := map[string]string{"amount": "1000", "orderId": "ord-9"}

	fieldSet := []string{"amount", "extraData", "orderId"}
	require.Equal(t, Sign("k", full, fieldSet), Sign("k", sparse, fieldSet))
}

func TestParseCallbackQuery_DecodesBeforeSigning(t *testing.T) {
	p := sampleCallback()
	p.OrderInfo = "standard monthly / thang 10"
	p.Signature = Sign("return-secret", p.SignatureFields(), CallbackFields)

	values := url.Values{}
	values.Set("partnerCode", p.PartnerCode)
	values.Set("orderId", p.OrderID)
	values.Set("requestId", p.RequestID)
	values.Set("amount", "129000")
	values.Set("orderInfo", p.OrderInfo)
	values.Set("orderType", p.OrderType)
	values.Set("transId", "4088878653")
	values.Set("resultCode", "0")
	values.Set("message", p.Message)
	values.Set("payType", p.PayType)
	values.Set("responseTime", "1700000000000")
	values.Set("extraData", p.ExtraData)
	values.Set("signature", p.Signature)

	// Round-trip through an encoded query string the way a redirect arrives.
	parsed, err := url.ParseQuery(values.Encode())
	require.NoError(t, err)

	got, err := ParseCallbackQuery(parsed)
	require.NoError(t, err)
	require.Equal(t, p, got)
	require.True(t, Verify("return-secret", got.SignatureFields(), CallbackFields, got.Signature))
}

func TestParseCallbackQuery_BadNumbers(t *testing.T) {
	values := url.Values{}
	values.Set("orderId", "ord-1")
	values.Set("amount", "not-a-number")

	_, err := ParseCallbackQuery(values)
	require.Error(t, err)
}

func TestParseCallbackQuery_MissingNumericDefaultsToZero(t *testing.T) {
	values := url.Values{}
	values.Set("orderId", "ord-1")

	p, err := ParseCallbackQuery(values)
	require.NoError(t, err)
	require.Zero(t, p.Amount)
	require.Zero(t, p.ResultCode)
}
