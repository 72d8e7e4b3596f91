package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"acefeed/internal/deal"
)

const defaultPageSize = 100

// Puller fetches deal revisions from the upstream deal API in pages. It
// backfills history on startup and catches up after NATS outages; the
// subscriber remains the low-latency path.
type Puller struct {
	client   *http.Client
	baseURL  string
	pageSize int
}

func NewPuller(baseURL string, pageSize int) *Puller {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &Puller{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURL:  baseURL,
		pageSize: pageSize,
	}
}

type dealPageJSON struct {
	Pages int               `json:"pages"`
	List  []json.RawMessage `json:"list"`
}

// Pull fetches every deal revision as of the given date, returning the
// deals and the number of pages walked. A non-zero lastSec restricts the
// query to revisions from the previous lastSec seconds.
func (p *Puller) Pull(ctx context.Context, asOf time.Time, lastSec int) ([]*deal.Deal, int, error) {
	var deals []*deal.Deal

	pageIdx := 1
	pages := 1
	for pageIdx <= pages {
		page, err := p.fetchPage(ctx, asOf, pageIdx, lastSec)
		if err != nil {
			return nil, pageIdx - 1, fmt.Errorf("fetch page %d: %w", pageIdx, err)
		}
		pages = page.Pages

		for _, raw := range page.List {
			d, err := ParseDeal(raw)
			if err != nil {
				log.Printf("WARN: skipping unparseable deal on page %d: %v", pageIdx, err)
				continue
			}
			deals = append(deals, d)
		}

		pageIdx++
	}

	log.Printf("INFO: pulled %d deals as_of=%s pages=%d", len(deals), asOf.Format(time.RFC3339), pages)
	return deals, pages, nil
}

func (p *Puller) fetchPage(ctx context.Context, asOf time.Time, pageIdx, lastSec int) (*dealPageJSON, error) {
	params := url.Values{}
	params.Set("as_of", strconv.FormatInt(asOf.Unix(), 10))
	params.Set("page_idx", strconv.Itoa(pageIdx))
	params.Set("page_size", strconv.Itoa(p.pageSize))
	if lastSec > 0 {
		params.Set("last_sec", strconv.Itoa(lastSec))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/deal/ace/list?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var page dealPageJSON
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	if page.Pages < 1 {
		page.Pages = 1
	}
	return &page, nil
}
