// Package geocode suggests names for places by reverse geocoding them with
// Nominatim, caching answers by the bounding box Nominatim reports.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"visitlog/internal/store"
)

// DefaultBaseURL is the public Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// DefaultUserAgent identifies the client, as required by the Nominatim usage policy.
const DefaultUserAgent = "visitlog/1.0 (location-history)"

// Cache stores reverse-geocoding answers. *store.DB implements it.
type Cache interface {
	LookupGeocode(ctx context.Context, lat, lon float64) (*store.GeocodeEntry, error)
	InsertGeocode(ctx context.Context, e store.GeocodeEntry) error
}

// Suggestion is a reverse-geocoded name for a coordinate.
type Suggestion struct {
	PlaceName   string  `json:"place_name"`
	PlaceType   string  `json:"place_type,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Cached      bool    `json:"cached"`
}

// Service reverse geocodes coordinates, at most one upstream request per
// MinInterval.
type Service struct {
	cache      Cache
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *zap.Logger

	MinInterval time.Duration

	rateMu      sync.Mutex
	lastRequest time.Time
}

// NewService returns a service. Empty baseURL or userAgent select the defaults.
func NewService(cache Cache, baseURL, userAgent string, logger *zap.Logger) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:       cache,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     baseURL,
		userAgent:   userAgent,
		logger:      logger,
		MinInterval: time.Second,
	}
}

// Suggest returns a name for lat/lon, or nil when Nominatim has nothing useful.
func (s *Service) Suggest(ctx context.Context, lat, lon float64) (*Suggestion, error) {
	cached, err := s.cache.LookupGeocode(ctx, lat, lon)
	if err != nil {
		s.logger.Warn("geocache lookup failed", zap.Error(err))
	} else if cached != nil {
		return &Suggestion{
			PlaceName:   cached.PlaceName,
			PlaceType:   cached.PlaceType,
			DisplayName: cached.DisplayName,
			Lat:         lat,
			Lon:         lon,
			Cached:      true,
		}, nil
	}

	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.fetch(ctx, lat, lon)
}

// wait blocks until MinInterval has passed since the previous request.
func (s *Service) wait(ctx context.Context) error {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	if elapsed := time.Since(s.lastRequest); elapsed < s.MinInterval {
		t := time.NewTimer(s.MinInterval - elapsed)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	s.lastRequest = time.Now()
	return nil
}

type nominatimResponse struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Type        string   `json:"type"`
	BoundingBox []string `json:"boundingbox"` // [min_lat, max_lat, min_lon, max_lon]
	Address     address  `json:"address"`
}

type address struct {
	Amenity       string `json:"amenity,omitempty"`
	Shop          string `json:"shop,omitempty"`
	Tourism       string `json:"tourism,omitempty"`
	Leisure       string `json:"leisure,omitempty"`
	Building      string `json:"building,omitempty"`
	HouseNumber   string `json:"house_number,omitempty"`
	Road          string `json:"road,omitempty"`
	Neighbourhood string `json:"neighbourhood,omitempty"`
	Suburb        string `json:"suburb,omitempty"`
	City          string `json:"city,omitempty"`
	Town          string `json:"town,omitempty"`
	Village       string `json:"village,omitempty"`
}

func (s *Service) fetch(ctx context.Context, lat, lon float64) (*Suggestion, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	q.Set("format", "jsonv2")
	q.Set("zoom", "18") // building-level detail
	q.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/reverse?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nominatim request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var nr nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("failed to parse nominatim response: %w", err)
	}

	name := placeName(nr)
	if name == "" {
		return nil, nil
	}
	sug := &Suggestion{PlaceName: name, PlaceType: nr.Type, DisplayName: nr.DisplayName, Lat: lat, Lon: lon}

	if entry, ok := cacheEntry(nr, lat, lon); ok {
		entry.PlaceName, entry.PlaceType, entry.DisplayName = sug.PlaceName, sug.PlaceType, sug.DisplayName
		if err := s.cache.InsertGeocode(ctx, entry); err != nil {
			s.logger.Warn("geocache insert failed", zap.Error(err))
		}
	}

	s.logger.Debug("reverse geocoded", zap.Float64("lat", lat), zap.Float64("lon", lon), zap.String("name", name))
	return sug, nil
}

// cacheEntry builds the cached box from the response, grown to include the
// queried point.
func cacheEntry(nr nominatimResponse, lat, lon float64) (store.GeocodeEntry, bool) {
	if len(nr.BoundingBox) != 4 {
		return store.GeocodeEntry{}, false
	}

	var bounds [4]float64
	for i, v := range nr.BoundingBox {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return store.GeocodeEntry{}, false
		}
		bounds[i] = f
	}

	e := store.GeocodeEntry{MinLat: bounds[0], MaxLat: bounds[1], MinLon: bounds[2], MaxLon: bounds[3]}
	e.MinLat = min(e.MinLat, lat)
	e.MaxLat = max(e.MaxLat, lat)
	e.MinLon = min(e.MinLon, lon)
	e.MaxLon = max(e.MaxLon, lon)
	return e, true
}

// placeName picks the most specific useful name from a response.
func placeName(nr nominatimResponse) string {
	if nr.Name != "" {
		return nr.Name
	}

	addr := nr.Address
	for _, v := range []string{addr.Amenity, addr.Shop, addr.Tourism, addr.Leisure} {
		if v != "" {
			return v
		}
	}
	if addr.Building != "" && addr.Building != "yes" {
		return addr.Building
	}

	if addr.Road != "" {
		if addr.HouseNumber != "" {
			return addr.HouseNumber + " " + addr.Road
		}
		return addr.Road
	}

	for _, v := range []string{addr.Neighbourhood, addr.Suburb, addr.City, addr.Town, addr.Village} {
		if v != "" {
			return v
		}
	}
	return ""
}
