// Package unpaywall sucht Open-Access-Fassungen von Papers über die Unpaywall-API.
package unpaywall

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

// ErrNotFound bedeutet, dass Unpaywall die DOI nicht kennt.
var ErrNotFound = errors.New("doi not known to unpaywall")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Response repräsentiert die JSON-Antwort der Unpaywall-API.
type Response struct {
	DOI            string    `json:"doi"`
	IsOA           bool      `json:"is_oa"`
	BestOALocation *Location `json:"best_oa_location"`
}

// Location ist ein Fundort eines Volltexts.
type Location struct {
	URL       string `json:"url"`
	URLForPDF string `json:"url_for_pdf"`
	HostType  string `json:"host_type"`
	License   string `json:"license"`
}

// Client kapselt die Abfragen an Unpaywall.
type Client struct {
	BaseURL string
	Email   string
	Logger  *zap.Logger
	limiter *rate.Limiter
}

// NewClient erstellt einen neuen Unpaywall-Client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.UnpaywallRateLimit > 0 {
		limit = rate.Limit(cfg.UnpaywallRateLimit)
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.UnpaywallBaseURL, "/"),
		Email:   cfg.UnpaywallEmail,
		Logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Lookup holt den besten Open-Access-Fundort für die DOI eines Papers.
func (c *Client) Lookup(ctx context.Context, paperID int64, doi string) (*models.PaperLink, error) {
	if c.Email == "" {
		return nil, fmt.Errorf("unpaywall email ist nicht konfiguriert")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?email=%s", c.BaseURL, url.PathEscape(doi), url.QueryEscape(c.Email))
	log := c.Logger.With(zap.Int64("paper_id", paperID), zap.String("doi", doi))
	log.Debug("Rufe Unpaywall API auf.")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unpaywall request failed with status: %d", resp.StatusCode)
	}

	var ur Response
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return nil, err
	}

	link := &models.PaperLink{PaperID: paperID, DOI: doi, IsOA: ur.IsOA}
	if loc := ur.BestOALocation; loc != nil {
		link.URL = loc.URL
		link.PDFURL = loc.URLForPDF
		link.HostType = loc.HostType
		link.License = loc.License
	}
	if link.PDFURL != "" {
		log.Info("PDF-Link über Unpaywall gefunden.")
	} else {
		log.Debug("Kein PDF-Link in Unpaywall-Antwort gefunden.")
	}
	return link, nil
}
