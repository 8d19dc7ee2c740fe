package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"datahouse.com/pkg/metrics"
	"datahouse.com/pkg/ratelimit"
	"datahouse.com/pkg/xerr"
	"github.com/segmentio/encoding/json"
	"golang.org/x/time/rate"
)

const maxBody = 32 << 20

type Config struct {
	Timeout   time.Duration  `mapstructure:"timeout"`
	QPS       float64        `mapstructure:"qps"` // 每个 provider 的 QPS，<=0 不限速
	Burst     int            `mapstructure:"burst"`
	UserAgent string         `mapstructure:"user_agent"`
	Breaker   ratelimit.Rule `mapstructure:"breaker"`
}

// Client 所有数据源共用的 HTTP 客户端
// 每个 provider 独立的令牌桶和熔断器，错误统一映射成 xerr 分类
type Client struct {
	hc       *http.Client
	limits   *ratelimit.Store
	breakers *ratelimit.Manager
	ua       string
}

func New(c Config) *Client {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (X11; Linux x86_64) datahouse-recorder"
	}
	return &Client{
		hc:       &http.Client{Timeout: c.Timeout},
		limits:   ratelimit.NewStore(rate.Limit(c.QPS), c.Burst, 0),
		breakers: ratelimit.NewManager(c.Breaker, nil),
		ua:       c.UserAgent,
	}
}

// Get 返回响应体
func (c *Client) Get(ctx context.Context, provider, rawURL string, query url.Values) ([]byte, error) {
	return c.Do(ctx, provider, http.MethodGet, rawURL, query, nil)
}

// GetJSON 响应体按 JSON 解码到 out，解码失败算 DataValidation
func (c *Client) GetJSON(ctx context.Context, provider, rawURL string, query url.Values, out any) error {
	body, err := c.Get(ctx, provider, rawURL, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return xerr.NewValidation(err, "decode "+provider+" payload")
	}
	return nil
}

func (c *Client) Do(ctx context.Context, provider, method, rawURL string, query url.Values, body io.Reader) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, xerr.NewFatal(err, "bad url")
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	start := time.Now()
	if err := c.limits.Wait(ctx, provider); err != nil {
		return nil, err
	}
	metrics.RateLimitWaitSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	var out []byte
	err = c.breakers.Execute(provider, func() error {
		var doErr error
		out, doErr = c.roundTrip(ctx, method, u.String(), body)
		return doErr
	})
	if errors.Is(err, ratelimit.ErrRejected) {
		metrics.CBRejectTotal.WithLabelValues(provider).Inc()
	}
	return out, err
}

func (c *Client) roundTrip(ctx context.Context, method, target string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, xerr.NewFatal(err, "build request")
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json, text/csv, */*")

	resp, err := c.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, xerr.NewTransient(err, method+" "+target)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, xerr.NewTransient(err, "read body")
	}
	if err := statusError(resp.StatusCode, target); err != nil {
		return nil, err
	}
	return b, nil
}

// statusError 429/5xx 可重试；其他 4xx 说明请求内容有问题，按无数据处理
func statusError(code int, target string) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests || code >= 500:
		return xerr.NewTransient(fmt.Errorf("http status %d", code), target)
	default:
		return xerr.NewValidation(fmt.Errorf("http status %d", code), target)
	}
}
