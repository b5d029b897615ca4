package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/ignatzorin/roadside-backend/internal/domain/valueobject"
	"github.com/ignatzorin/roadside-backend/internal/logger"
)

const (
	addressTTL = 24 * time.Hour
	maxRetries = 3
)

var errNoAddress = errors.New("geo: address not found")

// Cache кэш адресов; реализуется service.CacheService.
type Cache interface {
	GetOrSet(ctx context.Context, key string, ttl time.Duration, dst interface{}, fn func() (interface{}, error)) error
}

// Geocoder получает адрес по координатам через Google Geocoding API.
type Geocoder struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	cache      Cache
	newBackOff func() backoff.BackOff
}

// NewGeocoder создаёт геокодер. cache может быть nil.
func NewGeocoder(client *http.Client, baseURL, apiKey string, cache Cache) *Geocoder {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Geocoder{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		cache:   cache,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxElapsedTime = 3 * time.Second
			return b
		},
	}
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	PlusCode struct {
		CompoundCode string `json:"compound_code"`
	} `json:"plus_code"`
}

// ReverseGeocode возвращает адрес точки или nil, если адрес получить не удалось.
// Ошибки только логируются: адрес в карточке необязателен.
func (g *Geocoder) ReverseGeocode(ctx context.Context, p *valueobject.Point) *string {
	if p == nil || g.apiKey == "" {
		return nil
	}

	var address string
	var err error
	if g.cache != nil {
		err = g.cache.GetOrSet(ctx, cacheKey(*p), addressTTL, &address, func() (interface{}, error) {
			return g.lookup(ctx, *p)
		})
	} else {
		address, err = g.lookup(ctx, *p)
	}

	if err != nil {
		if !errors.Is(err, errNoAddress) {
			logger.For("geocoder").WithError(err).WithField("point", p.Coordinates()).Warn("reverse geocode failed")
		}
		return nil
	}
	return &address
}

func (g *Geocoder) lookup(ctx context.Context, p valueobject.Point) (string, error) {
	query := url.Values{}
	query.Set("latlng", formatCoordinate(p.Lat)+","+formatCoordinate(p.Lng))
	query.Set("key", g.apiKey)
	endpoint := g.baseURL + "?" + query.Encode()

	var address string
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("geo: upstream status %d", resp.StatusCode)
		}

		var body geocodeResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return backoff.Permanent(fmt.Errorf("geo: decode response: %w", err))
		}

		switch body.Status {
		case "OK":
		case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
			return fmt.Errorf("geo: transient status %s", body.Status)
		case "ZERO_RESULTS":
			return backoff.Permanent(errNoAddress)
		default:
			return backoff.Permanent(fmt.Errorf("geo: status %s: %s", body.Status, body.ErrorMessage))
		}

		for _, result := range body.Results {
			if strings.TrimSpace(result.FormattedAddress) != "" {
				address = result.FormattedAddress
				return nil
			}
		}
		if body.PlusCode.CompoundCode != "" {
			address = body.PlusCode.CompoundCode
			return nil
		}
		return backoff.Permanent(errNoAddress)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(g.newBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return address, nil
}

func cacheKey(p valueobject.Point) string {
	return "geocode:" + formatCoordinate(p.Lng) + "," + formatCoordinate(p.Lat)
}

func formatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
