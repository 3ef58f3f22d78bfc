// Package remote is the HTTP client for the related-items service.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"butterfly/internal/domain"
	"butterfly/internal/errors"
)

var (
	// ErrTransport marks every failure to obtain a usable answer: network
	// errors, timeouts, non-2xx replies, unknown statuses and bad payloads.
	ErrTransport = errors.New("remote transport failure")

	// ErrNotFound is returned by Article when the key is unknown
	ErrNotFound = errors.New("remote article not found")
)

// maxBody caps how much of a response is read
const maxBody = 4 << 20

// Recorder observes client traffic. metrics.Collector implements it.
type Recorder interface {
	RemoteRequest(op, outcome string, elapsed time.Duration)
	BreakerStateChanged(name, state string)
}

// BreakerConfig tunes the circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used when none are given
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          20 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      5,
	}
}

// Config holds client settings
type Config struct {
	BaseURL string
	Timeout time.Duration
	Rate    float64 // Requests per second, 0 disables limiting
	Burst   int
	Breaker BreakerConfig

	HTTPClient *http.Client
	Recorder   Recorder
}

// Client talks to the remote related-items service
type Client struct {
	base     *url.URL
	http     *http.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
	recorder Recorder
	log      *zap.SugaredLogger
}

// New builds a client for cfg.BaseURL
func New(cfg Config, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "invalid remote base url")
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.Newf("remote base url must be http(s), got %q", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	bc := cfg.Breaker
	if bc == (BreakerConfig{}) {
		bc = DefaultBreakerConfig()
	}

	c := &Client{
		base:     base,
		http:     hc,
		limiter:  limiter,
		validate: validator.New(),
		recorder: cfg.Recorder,
		log:      log,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote:" + base.Host,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnw("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			if c.recorder != nil {
				c.recorder.BreakerStateChanged(name, to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures count against the remote.
			return err == nil || !errors.Is(err, ErrTransport)
		},
	})
	return c, nil
}

// Related asks for the items related to externalKey in direction dir
func (c *Client) Related(ctx context.Context, externalKey string, dir domain.Direction) (domain.RelatedResult, error) {
	req := RelatedRequest{ExternalKey: externalKey, Direction: dir}
	if err := c.validate.Struct(req); err != nil {
		return domain.RelatedResult{}, errors.Wrap(err, "invalid related request")
	}

	env, err := c.do(ctx, "related", http.MethodPost, "related", req)
	if err != nil {
		return domain.RelatedResult{}, err
	}

	switch env.Status {
	case StatusEmpty:
		return domain.Empty(), nil
	case StatusSuccess:
		items := make([]domain.Item, 0, len(env.Data))
		for _, a := range env.Data {
			items = append(items, a.Item())
		}
		return domain.Success(items...), nil
	default:
		return domain.RelatedResult{}, errors.Mark(errors.Newf("unexpected status %d", env.Status), ErrTransport)
	}
}

// Article fetches a single item, used to seed a session
func (c *Client) Article(ctx context.Context, externalKey string) (domain.Item, error) {
	if strings.TrimSpace(externalKey) == "" {
		return domain.Item{}, errors.New("external key is required")
	}
	env, err := c.do(ctx, "article", http.MethodGet, "articles/"+url.PathEscape(externalKey), nil)
	if err != nil {
		return domain.Item{}, err
	}
	if env.Status == StatusEmpty || (env.Status == StatusSuccess && len(env.Data) == 0) {
		return domain.Item{}, errors.Wrapf(ErrNotFound, "article %s", externalKey)
	}
	if env.Status != StatusSuccess {
		return domain.Item{}, errors.Mark(errors.Newf("unexpected status %d", env.Status), ErrTransport)
	}
	return env.Data[0].Item(), nil
}

// BreakerState returns the breaker state name
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*Envelope, error) {
	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, method, path, body)
	})
	outcome := "ok"
	if err != nil {
		if errors.IsAny(err, gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests) {
			err = errors.Mark(errors.Wrap(err, "remote unavailable"), ErrTransport)
		}
		outcome = "error"
	}
	if c.recorder != nil {
		c.recorder.RemoteRequest(op, outcome, time.Since(start))
	}
	if err != nil {
		c.log.Debugw("Remote request failed", "op", op, "path", path, "error", err)
		return nil, errors.WithHint(err, "the related-articles service could not be reached")
	}
	return out.(*Envelope), nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (*Envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "rate limiter"), ErrTransport)
	}

	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request")
		}
		rd = bytes.NewReader(buf)
	}

	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "%s %s", method, u.Path), ErrTransport)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "read response"), ErrTransport)
	}

	var env Envelope
	decodeErr := json.Unmarshal(raw, &env)

	// A 404 carrying the empty status is an answer, not an outage.
	if resp.StatusCode == http.StatusNotFound && decodeErr == nil && env.Status == StatusEmpty {
		return &env, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Mark(errors.Newf("%s %s: http %d", method, u.Path, resp.StatusCode), ErrTransport)
	}
	if decodeErr != nil {
		return nil, errors.Mark(errors.Wrap(decodeErr, "decode response"), ErrTransport)
	}
	if err := c.validate.Struct(env); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "invalid response"), ErrTransport)
	}
	return &env, nil
}
