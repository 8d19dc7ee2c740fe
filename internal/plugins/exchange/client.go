package exchange

import (
	"context"
	"net/url"

	"datahouse.com/pkg/fetch"
)

const (
	provider        = "exchange"
	DefaultEndpoint = "https://api.nasdaq.com/api/screener/stocks"
)

// Row nasdaq 选股器导出的一行，全部是字符串
type Row struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	LastSale  string `json:"lastsale"`
	MarketCap string `json:"marketCap"`
	Country   string `json:"country"`
	IPOYear   string `json:"ipoyear"`
	Sector    string `json:"sector"`
	Industry  string `json:"industry"`
}

type screenerResp struct {
	Data *struct {
		Rows []Row `json:"rows"`
	} `json:"data"`
}

type Client struct {
	http     *fetch.Client
	endpoint string
}

func NewClient(hc *fetch.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{http: hc, endpoint: endpoint}
}

// Screener 某个交易所的全部股票
func (c *Client) Screener(ctx context.Context, exchange string) ([]Row, error) {
	q := url.Values{}
	q.Set("download", "true")
	q.Set("exchange", exchange)

	var resp screenerResp
	if err := c.http.GetJSON(ctx, provider, c.endpoint, q, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, nil
	}
	return resp.Data.Rows, nil
}
