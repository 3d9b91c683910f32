// Package places geokodiert Affiliations über die Google Places API.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ci-mapping/config"
	"ci-mapping/models"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoMatch bedeutet, dass Google für den Namen keinen Ort gefunden hat. Kein fataler Fehler.
var ErrNoMatch = errors.New("no place found")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client kapselt Find-Place und Place-Details.
type Client struct {
	BaseURL string
	Key     string
	Logger  *zap.Logger
	limiter *rate.Limiter
}

// NewClient erstellt einen neuen Places-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.GoogleRateLimit > 0 {
		limit = rate.Limit(cfg.GoogleRateLimit)
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.GoogleBaseURL, "/"),
		Key:     cfg.GoogleAPIKey,
		Logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type findPlaceResponse struct {
	Status     string `json:"status"`
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		PlaceID          string   `json:"place_id"`
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Types            []string `json:"types"`
		Website          string   `json:"website"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"result"`
}

// Geocode sucht den Namen einer Affiliation und liefert die Ortsdetails.
func (c *Client) Geocode(ctx context.Context, affiliationID int64, name string) (*models.AffiliationLocation, error) {
	log := c.Logger.With(zap.Int64("affiliation_id", affiliationID))

	placeID, err := c.findPlace(ctx, name)
	if err != nil {
		return nil, err
	}

	var details detailsResponse
	q := url.Values{"place_id": {placeID}, "key": {c.Key}}
	if err := c.get(ctx, "/details/json", q, &details); err != nil {
		return nil, err
	}
	if details.Status != "OK" {
		return nil, fmt.Errorf("place details failed: status %s", details.Status)
	}

	r := details.Result
	loc := &models.AffiliationLocation{
		ID:            r.PlaceID,
		AffiliationID: affiliationID,
		Lat:           r.Geometry.Location.Lat,
		Lng:           r.Geometry.Location.Lng,
		Address:       r.FormattedAddress,
		Name:          r.Name,
		Types:         strings.Join(r.Types, ","),
		Website:       r.Website,
	}
	for _, comp := range r.AddressComponents {
		for _, typ := range comp.Types {
			switch typ {
			case "postal_town":
				loc.PostalTown = comp.LongName
			case "administrative_area_level_2":
				loc.AdministrativeAreaLevel2 = comp.LongName
			case "administrative_area_level_1":
				loc.AdministrativeAreaLevel1 = comp.LongName
			case "country":
				loc.Country = comp.LongName
			}
		}
	}
	log.Debug("Affiliation geokodiert", zap.String("place_id", loc.ID), zap.String("country", loc.Country))
	return loc, nil
}

func (c *Client) findPlace(ctx context.Context, name string) (string, error) {
	var resp findPlaceResponse
	q := url.Values{
		"input":     {name},
		"inputtype": {"textquery"},
		"fields":    {"place_id"},
		"key":       {c.Key},
	}
	if err := c.get(ctx, "/findplacefromtext/json", q, &resp); err != nil {
		return "", err
	}
	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		return "", ErrNoMatch
	default:
		return "", fmt.Errorf("find place failed: status %s", resp.Status)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].PlaceID == "" {
		return "", ErrNoMatch
	}
	return resp.Candidates[0].PlaceID, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places request %s failed: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
