package fetch

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	c := NewClient(nil, Options{
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Jitter:      0,
	})
	c.SetHTTPClient(&http.Client{Transport: httpmock.DefaultTransport})
	return c
}

func TestGetSuccess(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/teclado",
		httpmock.NewStringResponder(200, "<html>ok</html>"))

	res, err := newTestClient().Get(context.Background(), "https://listado.mercadolibre.com.co/teclado")
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", res.Body)
	assert.Equal(t, "https://listado.mercadolibre.com.co/teclado", res.FinalURL)
}

func TestGetRetriesRateLimit(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/mouse",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(429, "slow down"), nil
			}
			return httpmock.NewStringResponse(200, "finally"), nil
		})

	res, err := newTestClient().Get(context.Background(), "https://listado.mercadolibre.com.co/mouse")
	require.NoError(t, err)
	assert.Equal(t, "finally", res.Body)
	assert.Equal(t, 3, calls)
}

func TestGetFailsImmediatelyOnOtherStatus(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	calls := 0
	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/gone",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(404, "not found"), nil
		})

	_, err := newTestClient().Get(context.Background(), "https://listado.mercadolibre.com.co/gone")
	require.Error(t, err)

	var statusErr *BadStatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 404, statusErr.Code)
	assert.Equal(t, 1, calls)
}

func TestGetExhaustsAttempts(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/blocked",
		httpmock.NewStringResponder(403, "denied"))

	_, err := newTestClient().Get(context.Background(), "https://listado.mercadolibre.com.co/blocked")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExhausted))
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestGetFollowsRedirects(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/item",
		httpmock.NewStringResponder(301, "").HeaderSet(http.Header{
			"Location": []string{"https://articulo.mercadolibre.com.co/MCO-1"},
		}))
	httpmock.RegisterResponder("GET", "https://articulo.mercadolibre.com.co/MCO-1",
		httpmock.NewStringResponder(200, "producto"))

	res, err := newTestClient().Get(context.Background(), "https://listado.mercadolibre.com.co/item")
	require.NoError(t, err)
	assert.Equal(t, "producto", res.Body)
	assert.Equal(t, "https://articulo.mercadolibre.com.co/MCO-1", res.FinalURL)
}

func TestGetContextCancellation(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", "https://listado.mercadolibre.com.co/slow",
		httpmock.NewStringResponder(429, "slow down"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient().Get(ctx, "https://listado.mercadolibre.com.co/slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIdentitySelectors(t *testing.T) {
	random := NewRandomSelector(nil)
	assert.NotEmpty(t, random.UserAgent())

	rr := NewRoundRobinSelector([]string{"a", "b"})
	assert.Equal(t, "a", rr.UserAgent())
	assert.Equal(t, "b", rr.UserAgent())
	assert.Equal(t, "a", rr.UserAgent())
}
