package baostock

import (
	"context"
	"net/url"
	"strings"
	"time"

	"datahouse.com/pkg/fetch"
	"datahouse.com/pkg/xerr"
)

const provider = "baostock"

// ResultSet baostock 的返回格式：列名 + 字符串行
type ResultSet struct {
	ErrorCode string     `json:"error_code"`
	ErrorMsg  string     `json:"error_msg"`
	Fields    []string   `json:"fields"`
	Data      [][]string `json:"data"`
}

// Rows 按列名展开，缺列的行补空串
func (rs *ResultSet) Rows() []map[string]string {
	out := make([]map[string]string, 0, len(rs.Data))
	for _, row := range rs.Data {
		m := make(map[string]string, len(rs.Fields))
		for i, f := range rs.Fields {
			if i < len(row) {
				m[strings.TrimSpace(f)] = row[i]
			} else {
				m[strings.TrimSpace(f)] = ""
			}
		}
		out = append(out, m)
	}
	return out
}

// Client 走配置的 HTTP 网关访问 baostock
type Client struct {
	http     *fetch.Client
	endpoint string
}

func NewClient(hc *fetch.Client, endpoint string) *Client {
	return &Client{http: hc, endpoint: strings.TrimRight(endpoint, "/")}
}

// TradeDates [start, end] 的日历，包含非交易日
func (c *Client) TradeDates(ctx context.Context, start, end time.Time) (*ResultSet, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(time.DateOnly))
	if !end.IsZero() {
		q.Set("end_date", end.Format(time.DateOnly))
	}
	return c.query(ctx, "/query_trade_dates", q)
}

type BarsQuery struct {
	Code       string // sz.000001
	Start      time.Time
	End        time.Time
	Frequency  string
	AdjustFlag string
	Fields     string
}

func (c *Client) HistoryKData(ctx context.Context, bq BarsQuery) (*ResultSet, error) {
	q := url.Values{}
	q.Set("code", bq.Code)
	q.Set("start_date", bq.Start.Format(time.DateOnly))
	if !bq.End.IsZero() {
		q.Set("end_date", bq.End.Format(time.DateOnly))
	}
	q.Set("frequency", bq.Frequency)
	q.Set("adjustflag", bq.AdjustFlag)
	q.Set("fields", bq.Fields)
	return c.query(ctx, "/query_history_k_data_plus", q)
}

func (c *Client) query(ctx context.Context, path string, q url.Values) (*ResultSet, error) {
	var rs ResultSet
	if err := c.http.GetJSON(ctx, provider, c.endpoint+path, q, &rs); err != nil {
		return nil, err
	}
	if rs.ErrorCode != "" && rs.ErrorCode != "0" {
		return nil, xerr.Validationf("baostock %s: %s %s", path, rs.ErrorCode, rs.ErrorMsg)
	}
	return &rs, nil
}
