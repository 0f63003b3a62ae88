package api

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func newTestClient(t *testing.T, handler fasthttp.RequestHandler) *ComputeClient {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: handler}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	return newComputeClient("http://compute.test/", "secret", "gcp", client, zerolog.Nop())
}

func TestProvision(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		assert.Equal(t, "/instances", string(ctx.Path()))
		assert.Equal(t, fasthttp.MethodPost, string(ctx.Method()))
		assert.Equal(t, "Bearer secret", string(ctx.Request.Header.Peek("Authorization")))

		var req createInstanceRequest
		assert.NoError(t, json.Unmarshal(ctx.PostBody(), &req))
		assert.Equal(t, "mc-m1", req.Name)
		assert.Equal(t, "europe-west1", req.Region)
		assert.Equal(t, "m1", req.Labels["match"])

		ctx.SetStatusCode(fasthttp.StatusCreated)
		ctx.SetBodyString(`{"id":"vm-1","ip":"10.0.0.5","status":"RUNNING"}`)
	})

	inst, err := c.Provision(context.Background(), "europe-west1", "mc-m1", map[string]string{"match": "m1"})
	require.NoError(t, err)
	assert.Equal(t, "vm-1", inst.ID)
	assert.Equal(t, "10.0.0.5", inst.IP)
	assert.Equal(t, 27015, inst.Port)
	assert.Equal(t, "gcp", c.Provider())
}

func TestProvision_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString(`{"id":"vm-2","ip":"10.0.0.6","port":27016}`)
	})

	inst, err := c.Provision(context.Background(), "europe-west1", "mc-m2", nil)
	require.NoError(t, err)
	assert.Equal(t, "vm-2", inst.ID)
	assert.Equal(t, 27016, inst.Port)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProvision_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusForbidden)
		ctx.SetBodyString("quota exceeded")
	})

	_, err := c.Provision(context.Background(), "europe-west1", "mc-m3", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, fasthttp.StatusForbidden, se.Code)
	assert.False(t, se.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestStopAndDelete_IgnoreGoneInstances(t *testing.T) {
	c := newTestClient(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/instances/vm-1/stop":
			ctx.SetStatusCode(fasthttp.StatusOK)
		case "/instances/vm-1":
			assert.Equal(t, fasthttp.MethodDelete, string(ctx.Method()))
			ctx.SetStatusCode(fasthttp.StatusNoContent)
		case "/instances/gone/stop":
			ctx.SetStatusCode(fasthttp.StatusConflict)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})

	ctx := context.Background()
	assert.NoError(t, c.Stop(ctx, "vm-1"))
	assert.NoError(t, c.Delete(ctx, "vm-1"))
	assert.NoError(t, c.Stop(ctx, "gone"))
	assert.NoError(t, c.Delete(ctx, "gone"))
}
