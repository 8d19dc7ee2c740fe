package yahoo

import (
	"context"
	"net/url"
	"strings"

	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/xerr"
	"github.com/shopspring/decimal"
)

const (
	provider        = "yahoo"
	DefaultEndpoint = "https://query2.finance.yahoo.com"
)

// Info 详情补全需要的字段
type Info struct {
	Sector        string
	Industry      string
	Country       string
	State         string
	City          string
	Zip           string
	Profile       string
	MarketCap     decimal.Decimal
	PreviousClose decimal.Decimal
}

type rawNum struct {
	Raw decimal.Decimal `json:"raw"`
}

type quoteSummaryResp struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector              string `json:"sector"`
				Industry            string `json:"industry"`
				Country             string `json:"country"`
				State               string `json:"state"`
				City                string `json:"city"`
				Zip                 string `json:"zip"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
			SummaryDetail struct {
				PreviousClose rawNum `json:"previousClose"`
				MarketCap     rawNum `json:"marketCap"`
			} `json:"summaryDetail"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

type Client struct {
	http     *fetch.Client
	endpoint string
}

func NewClient(hc *fetch.Client, endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{http: hc, endpoint: strings.TrimRight(endpoint, "/")}
}

// QuoteSummary 没有结果时返回 nil, nil
func (c *Client) QuoteSummary(ctx context.Context, symbol string) (*Info, error) {
	q := url.Values{}
	q.Set("modules", "assetProfile,summaryDetail")

	var resp quoteSummaryResp
	if err := c.http.GetJSON(ctx, provider, c.endpoint+"/v10/finance/quoteSummary/"+url.PathEscape(symbol), q, &resp); err != nil {
		return nil, err
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, xerr.Validationf("quote summary %s: %s %s", symbol, e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, nil
	}
	r := resp.QuoteSummary.Result[0]
	return &Info{
		Sector:        r.AssetProfile.Sector,
		Industry:      r.AssetProfile.Industry,
		Country:       r.AssetProfile.Country,
		State:         r.AssetProfile.State,
		City:          r.AssetProfile.City,
		Zip:           r.AssetProfile.Zip,
		Profile:       r.AssetProfile.LongBusinessSummary,
		MarketCap:     r.SummaryDetail.MarketCap.Raw,
		PreviousClose: r.SummaryDetail.PreviousClose.Raw,
	}, nil
}
