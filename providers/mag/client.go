package mag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ci-mapping/config"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrTransport kennzeichnet Netzwerk- und API-Fehler während einer Abfrage. Sie werden hier nicht wiederholt.
var ErrTransport = errors.New("mag transport error")

// Client kapselt den Evaluate-Endpunkt der Academic Knowledge API.
type Client struct {
	BaseURL string
	Key     string
	Limits  ExprLimits
	Logger  *zap.Logger

	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient erstellt einen Client aus der Konfiguration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	limit := rate.Inf
	if cfg.MAGRateLimit > 0 {
		limit = rate.Limit(cfg.MAGRateLimit)
	}
	return &Client{
		BaseURL:    strings.TrimRight(cfg.MAGBaseURL, "/"),
		Key:        cfg.MAGKey,
		Limits:     ExprLimits{MaxLength: cfg.MAGMaxExprLength, MaxTerms: cfg.MAGMaxExprTerms},
		Logger:     logger,
		httpClient: &http.Client{Timeout: cfg.MAGTimeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Name gibt den Namen des Providers zurück.
func (c *Client) Name() string {
	return "mag"
}

// Evaluate schickt eine Abfrage mit count und offset und gibt die Entities der Seite zurück.
func (c *Client) Evaluate(ctx context.Context, expr string, attributes []string, count, offset int) ([]Entity, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body := fmt.Sprintf("%s&count=%d&offset=%d&attributes=%s", expr, count, offset, strings.Join(attributes, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/evaluate", strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.Key)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.Logger.Debug("Sende Evaluate-Anfrage", zap.Int("count", count), zap.Int("offset", offset))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		c.Logger.Error("Evaluate-API hat nicht-200-Status zurückgegeben",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(msg)))
		return nil, fmt.Errorf("%w: evaluate failed: status %d", ErrTransport, resp.StatusCode)
	}

	var out EvaluateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return out.Entities, nil
}

// FieldLevels fragt die Hierarchie-Ebene (FL) für die angegebenen Field-of-Study-IDs ab.
func (c *Client) FieldLevels(ctx context.Context, ids []int64) (map[int64]int, error) {
	exprs, err := BuildExpr(ids, "Id", c.Limits)
	if err != nil {
		return nil, err
	}
	levels := make(map[int64]int, len(ids))
	for _, expr := range exprs {
		entities, err := c.Evaluate(ctx, expr, []string{"Id", "FL"}, len(ids), 0)
		if err != nil {
			return nil, err
		}
		for _, e := range entities {
			if e.Level != nil {
				levels[e.ID] = *e.Level
			}
		}
	}
	c.Logger.Info("Field-of-Study-Ebenen abgefragt", zap.Int("requested", len(ids)), zap.Int("received", len(levels)))
	return levels, nil
}
