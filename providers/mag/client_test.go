package mag

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ci-mapping/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	cfg := &config.Config{
		MAGBaseURL:       url,
		MAGKey:           "123",
		MAGTimeout:       5 * time.Second,
		MAGMaxExprLength: 1800,
	}
	return NewClient(cfg, zaptest.NewLogger(t))
}

func TestClient_Evaluate(t *testing.T) {
	t.Run("sends expected request", func(t *testing.T) {
		var gotBody, gotKey, gotType, gotPath, gotMethod string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			gotKey = r.Header.Get("Ocp-Apim-Subscription-Key")
			gotType = r.Header.Get("Content-Type")
			gotPath = r.URL.Path
			gotMethod = r.Method
			w.Write([]byte(`{"expr":"x","entities":[{"Id":1,"Ti":"a"},{"Id":2,"DOI":"10.1/x"}]}`))
		}))
		defer server.Close()

		c := newTestClient(t, server.URL)
		entities, err := c.Evaluate(context.Background(), "expr=OR(Id=1,Id=2)", []string{"Id", "Ti"}, 10, 0)
		require.NoError(t, err)

		assert.Equal(t, http.MethodPost, gotMethod)
		assert.Equal(t, "/evaluate", gotPath)
		assert.Equal(t, "expr=OR(Id=1,Id=2)&count=10&offset=0&attributes=Id,Ti", gotBody)
		assert.Equal(t, "123", gotKey)
		assert.Equal(t, "application/x-www-form-urlencoded", gotType)

		require.Len(t, entities, 2)
		assert.Equal(t, int64(1), entities[0].ID)
		assert.False(t, entities[0].Has("DOI"))
		assert.True(t, entities[1].Has("DOI"))
	})

	t.Run("non-200 is a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Evaluate(context.Background(), "expr=OR(Id=1)", []string{"Id"}, 1, 0)
		assert.ErrorIs(t, err, ErrTransport)
	})

	t.Run("invalid JSON is a transport error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"entities":`))
		}))
		defer server.Close()

		_, err := newTestClient(t, server.URL).Evaluate(context.Background(), "expr=OR(Id=1)", []string{"Id"}, 1, 0)
		assert.ErrorIs(t, err, ErrTransport)
	})
}

func TestClient_FieldLevels(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(b))
		w.Write([]byte(`{"entities":[{"Id":100,"FL":2},{"Id":200,"FL":0},{"Id":300}]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	levels, err := c.FieldLevels(context.Background(), []int64{100, 200, 300})
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{100: 2, 200: 0}, levels)
	require.Len(t, bodies, 1)
	assert.True(t, strings.HasPrefix(bodies[0], "expr=OR(Id=100,Id=200,Id=300)&count=3&offset=0&attributes=Id,FL"))
}

func TestEntity_Decode(t *testing.T) {
	t.Run("inverted abstract as object or string", func(t *testing.T) {
		var a, b Entity
		require.NoError(t, a.UnmarshalJSON([]byte(`{"Id":1,"IA":{"IndexLength":2,"InvertedIndex":{"hello":[0],"world":[1]}}}`)))
		require.NoError(t, b.UnmarshalJSON([]byte(`{"Id":1,"IA":"{\"IndexLength\":2,\"InvertedIndex\":{\"hello\":[0],\"world\":[1]}}"}`)))
		assert.Equal(t, a.InvertedAbstract, b.InvertedAbstract)
		assert.Equal(t, 2, a.InvertedAbstract.IndexLength)
	})

	t.Run("null affiliation", func(t *testing.T) {
		var e Entity
		require.NoError(t, e.UnmarshalJSON([]byte(`{"Id":1,"AA":[{"AuId":10,"AfId":null,"S":1},{"AuId":11,"AfId":5,"S":2}]}`)))
		require.Len(t, e.Authors, 2)
		assert.Nil(t, e.Authors[0].AffiliationID)
		require.NotNil(t, e.Authors[1].AffiliationID)
		assert.Equal(t, int64(5), *e.Authors[1].AffiliationID)
	})

	t.Run("marshal keeps raw payload", func(t *testing.T) {
		raw := `{"Id":7,"unknown":"kept"}`
		var e Entity
		require.NoError(t, e.UnmarshalJSON([]byte(raw)))
		out, err := e.MarshalJSON()
		require.NoError(t, err)
		assert.JSONEq(t, raw, string(out))
	})
}
