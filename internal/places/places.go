// Package places implements the Places Resolver: an external directory
// lookup with concurrent detail fetches, falling back to a built-in
// catalog when no API key is configured, the search errors, or it returns
// nothing admissible.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DeepNandre/friendlyy/internal/logger"
	"github.com/DeepNandre/friendlyy/internal/models"
)

const placesAPIBase = "https://maps.googleapis.com/maps/api/place"

// Resolver queries Google Places for businesses with phone numbers,
// falling back to a static catalog.
type Resolver struct {
	apiKey string
	client *http.Client
}

// New creates a Resolver. An empty apiKey means every search uses the
// fallback catalog.
func New(apiKey string) *Resolver {
	return &Resolver{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// LatLng is an optional coordinate bias for the search.
type LatLng struct {
	Lat float64
	Lng float64
}

// Search finds up to maxResults admissible businesses (phone number
// present) for query, optionally biased by location/coords.
func (r *Resolver) Search(ctx context.Context, query, location string, coords *LatLng, maxResults int) []models.Business {
	if r.apiKey == "" {
		logger.Info("places resolver has no API key, using fallback catalog", "query", query)
		return fallbackBusinesses(query, maxResults)
	}

	businesses, err := r.searchAPI(ctx, query, location, coords, maxResults)
	if err != nil {
		logger.Error("places API search failed, using fallback catalog", "error", err)
		return fallbackBusinesses(query, maxResults)
	}
	if len(businesses) == 0 {
		logger.Info("places API returned no admissible results, using fallback catalog", "query", query)
		return fallbackBusinesses(query, maxResults)
	}
	return businesses
}

type textSearchResponse struct {
	Results []struct {
		PlaceID string `json:"place_id"`
	} `json:"results"`
}

type placeDetailsResponse struct {
	Result struct {
		Name                       string `json:"name"`
		FormattedPhoneNumber       string `json:"formatted_phone_number"`
		InternationalPhoneNumber   string `json:"international_phone_number"`
		FormattedAddress           string `json:"formatted_address"`
		Rating                     float64 `json:"rating"`
		Geometry                   struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

func (r *Resolver) searchAPI(ctx context.Context, query, location string, coords *LatLng, maxResults int) ([]models.Business, error) {
	searchQuery := query
	if location != "" {
		searchQuery = fmt.Sprintf("%s in %s", query, location)
	}

	params := url.Values{}
	params.Set("query", searchQuery)
	params.Set("key", r.apiKey)
	if coords != nil {
		params.Set("location", fmt.Sprintf("%g,%g", coords.Lat, coords.Lng))
		params.Set("radius", "10000")
	}

	var search textSearchResponse
	if err := r.getJSON(ctx, placesAPIBase+"/textsearch/json?"+params.Encode(), &search); err != nil {
		return nil, fmt.Errorf("text search: %w", err)
	}
	if len(search.Results) == 0 {
		return nil, nil
	}

	candidates := search.Results
	if len(candidates) > maxResults*2 {
		candidates = candidates[:maxResults*2]
	}

	// Fetch details concurrently, same fan-out/collect shape the Media
	// Bridge uses for its two relay directions: one goroutine per unit of
	// concurrent I/O, each goroutine writing only its own index of a
	// pre-sized slice (no mutex or channel needed), so the search order is
	// kept.
	type result struct {
		business models.Business
		ok       bool
	}
	results := make([]result, len(candidates))
	var wg sync.WaitGroup
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, placeID string) {
			defer wg.Done()
			b, ok := r.fetchDetails(ctx, placeID)
			results[i] = result{business: b, ok: ok}
		}(i, c.PlaceID)
	}
	wg.Wait()

	businesses := make([]models.Business, 0, maxResults)
	for _, res := range results {
		if !res.ok {
			continue
		}
		businesses = append(businesses, res.business)
		if len(businesses) >= maxResults {
			break
		}
	}
	return businesses, nil
}

func (r *Resolver) fetchDetails(ctx context.Context, placeID string) (models.Business, bool) {
	if placeID == "" {
		return models.Business{}, false
	}

	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", "name,formatted_phone_number,international_phone_number,formatted_address,rating,geometry")
	params.Set("key", r.apiKey)

	var details placeDetailsResponse
	if err := r.getJSON(ctx, placesAPIBase+"/details/json?"+params.Encode(), &details); err != nil {
		logger.Warn("place details fetch failed", "place_id", placeID, "error", err)
		return models.Business{}, false
	}

	phone := details.Result.InternationalPhoneNumber
	if phone == "" {
		phone = details.Result.FormattedPhoneNumber
	}
	if phone == "" {
		return models.Business{}, false
	}
	phone = strings.ReplaceAll(phone, " ", "")

	return models.Business{
		ID:      placeID,
		Name:    details.Result.Name,
		Phone:   phone,
		Address: details.Result.FormattedAddress,
		Rating:  details.Result.Rating,
		Lat:     details.Result.Geometry.Location.Lat,
		Lng:     details.Result.Geometry.Location.Lng,
	}, true
}

func (r *Resolver) getJSON(ctx context.Context, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// fallbackCatalog mirrors the original deployment's built-in demo
// businesses, keyed by service keyword.
var fallbackCatalog = map[string][]models.Business{
	"plumber": {
		{ID: "fallback_plumber_1", Name: "Pimlico Plumbers", Phone: "+442078331111", Address: "1 Sail Street, London SE11 6NQ", Rating: 4.5, Lat: 51.4875, Lng: -0.1087},
		{ID: "fallback_plumber_2", Name: "Mr. Plumber London", Phone: "+442072230987", Address: "15 High Street, London EC1V 9JX", Rating: 4.3, Lat: 51.5246, Lng: -0.0952},
		{ID: "fallback_plumber_3", Name: "HomeServe UK", Phone: "+443301238888", Address: "Cable Drive, Walsall WS2 7BN", Rating: 4.1, Lat: 52.5860, Lng: -1.9826},
	},
	"electrician": {
		{ID: "fallback_electrician_1", Name: "London Electrical Services", Phone: "+442071234567", Address: "10 Electric Avenue, London SW9 8LA", Rating: 4.6, Lat: 51.4613, Lng: -0.1156},
		{ID: "fallback_electrician_2", Name: "Spark Electrical", Phone: "+442089876543", Address: "25 Power Street, London NW1 8XY", Rating: 4.4, Lat: 51.5362, Lng: -0.1426},
	},
	"locksmith": {
		{ID: "fallback_locksmith_1", Name: "London Locksmiths 24/7", Phone: "+442074561234", Address: "Lock Lane, London W1 2AB", Rating: 4.7, Lat: 51.5155, Lng: -0.1419},
	},
	"default": {
		{ID: "fallback_default_1", Name: "Friendly Demo Business 1", Phone: "+15005550006", Address: "123 Demo Street, London", Rating: 4.5, Lat: 51.5074, Lng: -0.1278},
		{ID: "fallback_default_2", Name: "Friendly Demo Business 2", Phone: "+15005550006", Address: "456 Test Road, London", Rating: 4.3, Lat: 51.5124, Lng: -0.1231},
	},
}

func fallbackBusinesses(query string, maxResults int) []models.Business {
	q := strings.ToLower(query)

	if list, ok := fallbackCatalog[q]; ok {
		return capBusinesses(list, maxResults)
	}
	for key, list := range fallbackCatalog {
		if strings.Contains(q, key) || strings.Contains(key, q) {
			return capBusinesses(list, maxResults)
		}
	}
	return capBusinesses(fallbackCatalog["default"], maxResults)
}

func capBusinesses(list []models.Business, max int) []models.Business {
	if max > 0 && len(list) > max {
		return list[:max]
	}
	return list
}
