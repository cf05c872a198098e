package api

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/entity"
	domainsvc "github.com/damon-houk/nbp-currency-exchange/internal/domain/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/cache"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/metrics"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultArchiveURL is the NBP "A" table archive form
	DefaultArchiveURL = "https://www.nbp.pl/transfer.aspx?c=/ascx/ListABCH.ascx&Typ=a&p=rok;mies&navid=archa"
	// DefaultTableBaseURL is where the XML tables are published
	DefaultTableBaseURL = "https://www.nbp.pl/kursy/xml"
)

// Operation labels used in logs and metrics
const (
	opArchiveForm  = "archive_form"
	opArchiveMonth = "archive_month"
	opTable        = "table"
)

var (
	dateRegex    = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	tableIDRegex = regexp.MustCompile(`a\d{3}z\d{6}`)
)

// ClientConfig configures the NBP client
type ClientConfig struct {
	ArchiveURL   string
	TableBaseURL string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	IndexTTL     time.Duration
}

// NBPClient fetches average exchange rates from the NBP "A" table archive
type NBPClient struct {
	archiveURL   string
	tableBaseURL string
	httpClient   *http.Client
	maxRetries   int
	retryBackoff time.Duration
	index        *cache.TableIndexCache
	logger       logger.Logger
	metrics      *metrics.RateMetrics
	now          func() time.Time
}

// NewNBPClient creates a new NBP client. A nil httpClient is replaced by one
// owned by the NBP client, with the configured timeout.
func NewNBPClient(cfg ClientConfig, httpClient *http.Client, log logger.Logger, m *metrics.RateMetrics) *NBPClient {
	if cfg.ArchiveURL == "" {
		cfg.ArchiveURL = DefaultArchiveURL
	}
	if cfg.TableBaseURL == "" {
		cfg.TableBaseURL = DefaultTableBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff < 0 {
		cfg.RetryBackoff = 0
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
		}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if m == nil {
		m = metrics.Nop()
	}

	c := &NBPClient{
		archiveURL:   cfg.ArchiveURL,
		tableBaseURL: strings.TrimRight(cfg.TableBaseURL, "/"),
		httpClient:   httpClient,
		maxRetries:   cfg.MaxRetries,
		retryBackoff: cfg.RetryBackoff,
		logger:       log,
		metrics:      m,
		now:          time.Now,
	}
	c.index = cache.NewTableIndexCache(cfg.IndexTTL, func() time.Time { return c.now() })

	return c
}

// rateTable is the XML document of one published table
type rateTable struct {
	XMLName     xml.Name       `xml:"tabela_kursow"`
	Number      string         `xml:"numer_tabeli"`
	PublishedOn string         `xml:"data_publikacji"`
	Positions   []ratePosition `xml:"pozycja"`
}

type ratePosition struct {
	Name        string `xml:"nazwa_waluty"`
	Multiplier  string `xml:"przelicznik"`
	Code        string `xml:"kod_waluty"`
	AverageRate string `xml:"kurs_sredni"`
}

// FetchRate returns the average rate of currency in PLN per unit on date.
// It fails with domainsvc.ErrNoRatePublished when no table was published that day
// and with *domainsvc.TransportError for anything that may succeed later.
func (c *NBPClient) FetchRate(ctx context.Context, date time.Time, currency entity.Currency) (decimal.Decimal, error) {
	date = entity.NormalizeDate(date)
	day := date.Format(entity.DateLayout)

	entry, cached, err := c.monthIndex(ctx, date.Year(), date.Month(), false)
	if err != nil {
		return decimal.Zero, err
	}

	tableID, ok := entry.Index[day]
	if !ok && cached && (c.isCurrentMonth(date) || entry.BuiltAt.Before(date.AddDate(0, 0, 1))) {
		// The cached index may predate the table
		entry, _, err = c.monthIndex(ctx, date.Year(), date.Month(), true)
		if err != nil {
			return decimal.Zero, err
		}
		tableID, ok = entry.Index[day]
	}

	if !ok {
		if !date.Before(c.today()) {
			return decimal.Zero, &domainsvc.TransportError{
				Op:  "lookup table index",
				Err: fmt.Errorf("table for %s is not published yet", day),
			}
		}
		return decimal.Zero, fmt.Errorf("%w: %s", domainsvc.ErrNoRatePublished, day)
	}

	return c.tableRate(ctx, tableID, currency)
}

// Close releases idle connections held by the HTTP client
func (c *NBPClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *NBPClient) today() time.Time {
	return entity.NormalizeDate(c.now().UTC())
}

func (c *NBPClient) isCurrentMonth(date time.Time) bool {
	today := c.today()
	return date.Year() == today.Year() && date.Month() == today.Month()
}

// monthIndex returns the table index of a month, from memory unless fresh is set.
// The second result reports whether the index came from memory.
func (c *NBPClient) monthIndex(ctx context.Context, year int, month time.Month, fresh bool) (cache.Entry, bool, error) {
	if !fresh {
		if entry, ok := c.index.Get(year, month); ok {
			c.metrics.IndexCacheHitsTotal.Inc()
			return entry, true, nil
		}
	}

	form, err := c.archiveForm(ctx)
	if err != nil {
		return cache.Entry{}, false, err
	}
	form.Set("rok", fmt.Sprintf("%02d", year%100))
	form.Set("mies", fmt.Sprintf("%02d", int(month)))

	body, contentType, err := c.do(ctx, opArchiveMonth, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.archiveURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return cache.Entry{}, false, err
	}

	doc, err := parseHTML(body, contentType)
	if err != nil {
		return cache.Entry{}, false, &domainsvc.TransportError{Op: opArchiveMonth, Err: err}
	}

	list := doc.Find("ul.archl").First()
	if list.Length() == 0 {
		return cache.Entry{}, false, &domainsvc.TransportError{
			Op:  opArchiveMonth,
			Err: fmt.Errorf("table list not found for %04d-%02d", year, int(month)),
		}
	}

	index := cache.MonthIndex{}
	list.Find("li").Each(func(_ int, item *goquery.Selection) {
		day := dateRegex.FindString(item.Text())
		href, _ := item.Find("a").First().Attr("href")
		tableID := tableIDRegex.FindString(href)
		if day == "" || tableID == "" {
			c.logger.Debug("Skipping archive entry", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"text":       strings.TrimSpace(item.Text()),
				"href":       href,
			})
			return
		}
		index[day] = tableID
	})

	entry := c.index.Put(year, month, index)

	c.logger.Debug("Built table index", map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"month":      fmt.Sprintf("%04d-%02d", year, int(month)),
		"tables":     len(index),
	})

	return entry, false, nil
}

// archiveForm loads the archive page and collects its form fields
func (c *NBPClient) archiveForm(ctx context.Context) (url.Values, error) {
	body, contentType, err := c.do(ctx, opArchiveForm, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.archiveURL, nil)
	})
	if err != nil {
		return nil, err
	}

	doc, err := parseHTML(body, contentType)
	if err != nil {
		return nil, &domainsvc.TransportError{Op: opArchiveForm, Err: err}
	}

	form := url.Values{}
	doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok || name == "" {
			return
		}
		value, _ := input.Attr("value")
		form.Set(name, value)
	})

	return form, nil
}

// tableRate fetches one XML table and extracts the rate of currency
func (c *NBPClient) tableRate(ctx context.Context, tableID string, currency entity.Currency) (decimal.Decimal, error) {
	tableURL := fmt.Sprintf("%s/%s.xml", c.tableBaseURL, tableID)
	op := opTable + " " + tableID

	body, _, err := c.do(ctx, opTable, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, tableURL, nil)
	})
	if err != nil {
		return decimal.Zero, err
	}

	decoder := xml.NewDecoder(bytes.NewReader(body))
	decoder.CharsetReader = charset.NewReaderLabel

	var table rateTable
	if err := decoder.Decode(&table); err != nil {
		return decimal.Zero, &domainsvc.TransportError{Op: op, Err: fmt.Errorf("failed to decode table: %w", err)}
	}

	for _, pos := range table.Positions {
		if strings.TrimSpace(pos.Code) != currency.String() {
			continue
		}

		rate, err := parsePosition(pos)
		if err != nil {
			return decimal.Zero, &domainsvc.TransportError{Op: op, Err: err}
		}

		c.logger.Debug("Parsed rate from table", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"table":      table.Number,
			"currency":   currency.String(),
			"rate":       rate.String(),
		})
		return rate, nil
	}

	return decimal.Zero, &domainsvc.TransportError{
		Op:  op,
		Err: fmt.Errorf("currency %s not listed in table", currency),
	}
}

// parsePosition converts a table row to the rate per single unit
func parsePosition(pos ratePosition) (decimal.Decimal, error) {
	rate, err := parsePolishDecimal(pos.AverageRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse rate %q: %w", pos.AverageRate, err)
	}

	multiplier := decimal.NewFromInt(1)
	if strings.TrimSpace(pos.Multiplier) != "" {
		multiplier, err = parsePolishDecimal(pos.Multiplier)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse multiplier %q: %w", pos.Multiplier, err)
		}
	}

	if !rate.IsPositive() || !multiplier.IsPositive() {
		return decimal.Zero, fmt.Errorf("invalid rate %s per %s units", rate, multiplier)
	}

	return rate.Div(multiplier), nil
}

// parsePolishDecimal parses a number written with a decimal comma
func parsePolishDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}

func parseHTML(body []byte, contentType string) (*goquery.Document, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to detect page encoding: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// do executes a request with retry logic. Transport errors and 5xx responses are
// retried with quadratic backoff; any failure is returned as a TransportError.
func (c *NBPClient) do(ctx context.Context, op string, newRequest func(context.Context) (*http.Request, error)) ([]byte, string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		body, contentType, retry, err := c.attempt(ctx, op, newRequest)
		if err == nil {
			return body, contentType, nil
		}
		lastErr = err

		if !retry || attempt == c.maxRetries {
			break
		}

		backoffTime := time.Duration(attempt*attempt) * c.retryBackoff
		c.logger.Warn("NBP request failed, retrying", map[string]interface{}{
			"request_id": middleware.GetRequestID(ctx),
			"operation":  op,
			"attempt":    attempt,
			"max":        c.maxRetries,
			"backoff":    backoffTime.String(),
			"error":      err.Error(),
		})

		select {
		case <-ctx.Done():
			return nil, "", &domainsvc.TransportError{Op: op, Err: ctx.Err()}
		case <-time.After(backoffTime):
		}
	}

	return nil, "", &domainsvc.TransportError{Op: op, Err: lastErr}
}

// attempt performs a single request. retry reports whether a failure is worth retrying.
func (c *NBPClient) attempt(ctx context.Context, op string, newRequest func(context.Context) (*http.Request, error)) (body []byte, contentType string, retry bool, err error) {
	req, err := newRequest(ctx)
	if err != nil {
		return nil, "", false, fmt.Errorf("failed to create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.NBPRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.NBPRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, "", ctx.Err() == nil, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Error closing response body", map[string]interface{}{
				"operation": op,
				"error":     closeErr.Error(),
			})
		}
	}()

	c.metrics.NBPRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", true, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, "", true, fmt.Errorf("NBP returned error status: %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, "", false, fmt.Errorf("NBP returned error status: %d", resp.StatusCode)
	}

	return body, resp.Header.Get("Content-Type"), false, nil
}
