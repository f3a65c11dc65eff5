package netcash

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/debitorders_backend/config"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("netcash")

// Client talks to the Netcash batch web service. Construction takes the
// explicit config struct; the client holds no ambient state. All calls carry
// a bounded timeout and are rate limited, matching Netcash's service terms.
type Client struct {
	cfg     config.NetcashConfig
	http    *http.Client
	limiter <-chan time.Time
}

func NewClient(cfg config.NetcashConfig) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: timeout},
		limiter: time.Tick(time.Second),
	}
}

// Known service result codes. Anything else the upload returns is the file
// token / batch reference.
var serviceErrorCodes = map[string]string{
	"100": "authentication failure: invalid service key",
	"101": "invalid vendor key",
	"102": "batch name already exists",
	"200": "general service error",
}

type soapFault struct {
	XMLName xml.Name `xml:"Fault"`
	Code    string   `xml:"faultcode"`
	Message string   `xml:"faultstring"`
}

// SubmitBatch uploads a validated batch file and returns the external batch
// reference Netcash assigns. A timeout, non-2xx response, SOAP fault or
// service error code all come back as an error; the caller marks the run
// failed and may resubmit.
func (c *Client) SubmitBatch(ctx context.Context, fileContents, batchName string) (string, error) {
	body := c.envelope("BatchFileUpload", map[string]string{
		"ServiceKey": c.cfg.ServiceKey,
		"File":       base64.StdEncoding.EncodeToString([]byte(fileContents)),
	})

	result, err := c.call(ctx, "/NIWS/niws_nif.svc", "BatchFileUpload", body)
	if err != nil {
		return "", fmt.Errorf("submit batch %q: %w", batchName, err)
	}

	token := strings.TrimSpace(result)
	if msg, bad := serviceErrorCodes[token]; bad {
		return "", fmt.Errorf("submit batch %q rejected: %s", batchName, msg)
	}
	if token == "" {
		return "", fmt.Errorf("submit batch %q: empty service response", batchName)
	}
	return token, nil
}

// BatchStatus polls the processor for a submitted batch. The result's first
// line is the batch-level status token; each following line is
// reference<TAB>status<TAB>reason for one transaction.
func (c *Client) BatchStatus(ctx context.Context, externalRef string) (BatchStatusResult, error) {
	body := c.envelope("RequestBatchStatus", map[string]string{
		"ServiceKey": c.cfg.ServiceKey,
		"FileToken":  externalRef,
	})

	result, err := c.call(ctx, "/NIWS/niws_nif.svc", "RequestBatchStatus", body)
	if err != nil {
		return BatchStatusResult{}, fmt.Errorf("batch status %q: %w", externalRef, err)
	}

	return parseBatchStatus(result)
}

func parseBatchStatus(raw string) (BatchStatusResult, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\r\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return BatchStatusResult{}, errors.New("empty batch status response")
	}
	if msg, bad := serviceErrorCodes[strings.TrimSpace(lines[0])]; bad {
		return BatchStatusResult{}, errors.New(msg)
	}

	out := BatchStatusResult{BatchStatus: strings.TrimSpace(lines[0])}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		tr := TransactionStatusResult{Reference: strings.TrimSpace(fields[0])}
		if len(fields) > 1 {
			tr.Status = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			tr.Reason = strings.TrimSpace(fields[2])
		}
		out.Transactions = append(out.Transactions, tr)
	}
	return out, nil
}

func (c *Client) envelope(operation string, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"><soap:Body>`)
	b.WriteString("<" + operation + ` xmlns="http://ws.netcash.co.za/NIWS/">`)
	for k, v := range fields {
		b.WriteString("<" + k + ">")
		_ = xml.EscapeText(&b, []byte(v))
		b.WriteString("</" + k + ">")
	}
	b.WriteString("</" + operation + "></soap:Body></soap:Envelope>")
	return b.String()
}

// call posts a SOAP envelope and extracts the operation result text, turning
// transport failures, non-2xx responses and SOAP faults into errors.
func (c *Client) call(ctx context.Context, path, operation, envelope string) (result string, err error) {
	ctx, span := tracer.Start(ctx, "netcash."+operation)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	<-c.limiter

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(envelope))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://ws.netcash.co.za/NIWS/"+operation)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("netcash transport error: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if fault := parseFault(raw); fault != "" {
			return "", fmt.Errorf("netcash fault: %s", fault)
		}
		return "", fmt.Errorf("netcash service error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if fault := parseFault(raw); fault != "" {
		return "", fmt.Errorf("netcash fault: %s", fault)
	}
	return extractResult(string(raw), operation+"Result"), nil
}

func parseFault(raw []byte) string {
	if !strings.Contains(string(raw), "Fault") {
		return ""
	}
	dec := xml.NewDecoder(strings.NewReader(string(raw)))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "Fault" {
			var f soapFault
			if err := dec.DecodeElement(&f, &start); err != nil {
				return "unparseable SOAP fault"
			}
			return strings.TrimSpace(f.Message)
		}
	}
}

func extractResult(body, element string) string {
	openTag := "<" + element + ">"
	closeTag := "</" + element + ">"
	start := strings.Index(body, openTag)
	end := strings.Index(body, closeTag)
	if start < 0 || end < 0 || end <= start {
		return ""
	}

	// Unescape the element's text content.
	var out strings.Builder
	dec := xml.NewDecoder(strings.NewReader(body[start : end+len(closeTag)]))
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			out.Write(cd)
		}
	}
	return out.String()
}
