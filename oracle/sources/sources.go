package sources

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	errorsmod "cosmossdk.io/errors"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/GPTx-global/oracle-relayer/oracle/log"
	"github.com/GPTx-global/oracle-relayer/oracle/retry"
	"github.com/GPTx-global/oracle-relayer/oracle/types"
)

const (
	DefaultRate  = rate.Limit(10)
	DefaultBurst = 10

	breakerFailures = 5
	breakerReset    = time.Minute
)

// Resolver turns the HTTP sources of a push job into one on-chain answer.
type Resolver struct {
	client   *http.Client
	limiter  *rate.Limiter
	breakers cmap.ConcurrentMap[string, *retry.CircuitBreaker]
}

type Option func(*Resolver)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Resolver) { r.client = client }
}

// WithRateLimit paces outbound requests across every source.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(r *Resolver) { r.limiter = rate.NewLimiter(limit, burst) }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		client:   defaultClient(),
		limiter:  rate.NewLimiter(DefaultRate, DefaultBurst),
		breakers: cmap.New[*retry.CircuitBreaker](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches every source, takes the median of the values that came back
// and scales it to an integer with the given number of decimals.
func (r *Resolver) Resolve(ctx context.Context, sources []types.Source, decimals uint8) (string, error) {
	values := make([]decimal.Decimal, 0, len(sources))
	for _, src := range sources {
		v, err := r.Fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			log.Warnf("Source %s failed: %v", src.EndPoint, err)
			continue
		}
		values = append(values, v)
	}

	if len(values) == 0 {
		return "", errorsmod.Wrapf(types.ErrNoAnswer, "none of %d sources answered", len(sources))
	}

	return Scale(Median(values), decimals), nil
}

// Fetch reads one source and applies its multiplier.
func (r *Resolver) Fetch(ctx context.Context, src types.Source) (decimal.Decimal, error) {
	var value decimal.Decimal

	err := r.breaker(src.EndPoint).Execute(func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		body, err := fetchRawData(ctx, r.client, src.EndPoint)
		if err != nil {
			return err
		}

		value, err = extract(body, src.SourcePath)
		return err
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	if src.Multiplier != "" {
		m, err := decimal.NewFromString(src.Multiplier)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid multiplier %q: %w", src.Multiplier, err)
		}
		value = value.Mul(m)
	}

	return value, nil
}

func (r *Resolver) breaker(endpoint string) *retry.CircuitBreaker {
	r.breakers.SetIfAbsent(endpoint, retry.NewCircuitBreaker(breakerFailures, breakerReset))
	cb, _ := r.breakers.Get(endpoint)
	return cb
}

// extract reads the number at path. A top-level array is read through its
// first element unless path indexes it explicitly.
func extract(body []byte, path string) (decimal.Decimal, error) {
	if path == "" {
		return decimal.Decimal{}, fmt.Errorf("empty path")
	}
	if !gjson.ValidBytes(body) {
		return decimal.Decimal{}, fmt.Errorf("response is not valid JSON")
	}

	if gjson.ParseBytes(body).IsArray() && !startsWithIndex(path) {
		path = "0." + path
	}

	result := gjson.GetBytes(body, path)
	if !result.Exists() {
		return decimal.Decimal{}, fmt.Errorf("path %q not found", path)
	}

	switch result.Type {
	case gjson.Number:
		return decimal.NewFromString(result.Raw)
	case gjson.String:
		v, err := decimal.NewFromString(strings.TrimSpace(result.Str))
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("value at %q is not a number: %w", path, err)
		}
		return v, nil
	default:
		return decimal.Decimal{}, fmt.Errorf("value at %q is %s, not a number", path, result.Type)
	}
}

func startsWithIndex(path string) bool {
	return path[0] == '#' || (path[0] >= '0' && path[0] <= '9')
}

// Median returns the middle value, or the mean of the two middle values.
func Median(values []decimal.Decimal) decimal.Decimal {
	sorted := append([]decimal.Decimal(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// Scale shifts v by decimals and rounds it to an integer string.
func Scale(v decimal.Decimal, decimals uint8) string {
	return v.Shift(int32(decimals)).Round(0).String()
}
