package report

import (
	"bytes"
	"html/template"
	"time"
)

// ReceiptDocument carries everything the receipt PDF shows.
type ReceiptDocument struct {
	Number      string
	OrderID     int64
	PaymentID   int64
	Amount      float64
	Currency    string
	Purpose     string
	GeneratedAt time.Time
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Receipt {{.Number}}</title>
<style>
body { font-family: sans-serif; margin: 48px; color: #1a1a1a; }
h1 { font-size: 20px; border-bottom: 2px solid #1a1a1a; padding-bottom: 8px; }
table { width: 100%; border-collapse: collapse; margin-top: 24px; }
td { padding: 6px 0; }
td.label { color: #666; width: 40%; }
.total { font-size: 18px; font-weight: bold; margin-top: 32px; }
.footer { margin-top: 48px; font-size: 11px; color: #999; }
</style>
</head>
<body>
<h1>Payment receipt {{.Number}}</h1>
<table>
<tr><td class="label">Order</td><td>#{{.OrderID}}</td></tr>
<tr><td class="label">Payment</td><td>#{{.PaymentID}}</td></tr>
<tr><td class="label">Purpose</td><td>{{.Purpose}}</td></tr>
<tr><td class="label">Date</td><td>{{.GeneratedAt.Format "2 January 2006 15:04 MST"}}</td></tr>
</table>
<p class="total">{{printf "%.2f" .Amount}} {{.Currency}}</p>
<p class="footer">This receipt confirms a completed payment and requires no signature.</p>
</body>
</html>`))

// ReceiptHTML renders the receipt document to the HTML Gotenberg converts.
func ReceiptHTML(doc ReceiptDocument) (string, error) {
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
