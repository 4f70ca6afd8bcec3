// Package httpd carries the sync protocol over http.
//
// Every message is a POST to a route under /v1, with a msgpack body. Errors are answered with
// a non-2xx status and a msgpack wire.Error.
package httpd

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oneconcern/dagsync/pkg/dlogger"
	"github.com/oneconcern/dagsync/pkg/metrics"
	"github.com/oneconcern/dagsync/pkg/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Routes of the protocol
const (
	RouteDescribe         = "/v1/describe"
	RouteResolve          = "/v1/resolve"
	RouteLeaves           = "/v1/leaves"
	RouteProbeGenerations = "/v1/generations"
	RouteFragment         = "/v1/fragment"
	RouteProbeFragment    = "/v1/fragment/probe"
	RouteSendNodes        = "/v1/nodes"
	RouteBlobPresence     = "/v1/blobs/presence"
	RouteSendBlobs        = "/v1/blobs"
	RouteFetchBlobs       = "/v1/blobs/fetch"
	RouteMetrics          = "/metrics"
	RouteHealth           = "/healthz"

	// DefaultMaxBodySize limits the size of request bodies
	DefaultMaxBodySize = 512 * metrics.MB
)

// RouterOption configures the router
type RouterOption func(*router)

// RouterLogger sets the logger of the router
func RouterLogger(l *zap.Logger) RouterOption {
	return func(r *router) {
		r.l = dlogger.OrNop(l)
	}
}

// WithRegistry serves the metrics of a registry
func WithRegistry(reg *prometheus.Registry) RouterOption {
	return func(r *router) {
		r.registry = reg
	}
}

// MaxBodySize limits the size of request bodies, in bytes
func MaxBodySize(size int64) RouterOption {
	return func(r *router) {
		if size > 0 {
			r.maxBodySize = size
		}
	}
}

type router struct {
	peer        wire.Peer
	l           *zap.Logger
	registry    *prometheus.Registry
	maxBodySize int64
}

// NewRouter serves a peer over http
func NewRouter(peer wire.Peer, opts ...RouterOption) http.Handler {
	rt := &router{
		peer:        peer,
		l:           zap.NewNop(),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, apply := range opts {
		apply(rt)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get(RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if rt.registry != nil {
		r.Method(http.MethodGet, RouteMetrics, metrics.Handler(rt.registry))
	}

	r.Post(RouteDescribe, handle(rt, peer.Describe))
	r.Post(RouteResolve, handle(rt, peer.Resolve))
	r.Post(RouteLeaves, handle(rt, peer.Leaves))
	r.Post(RouteProbeGenerations, handle(rt, peer.ProbeGenerations))
	r.Post(RouteFragment, handle(rt, peer.Fragment))
	r.Post(RouteProbeFragment, handle(rt, peer.ProbeFragment))
	r.Post(RouteSendNodes, handle(rt, peer.SendNodes))
	r.Post(RouteBlobPresence, handle(rt, peer.BlobPresence))
	r.Post(RouteSendBlobs, handle(rt, peer.SendBlobs))
	r.Post(RouteFetchBlobs, handle(rt, peer.FetchBlobs))
	return r
}

func handle[Req any, Reply any](rt *router, serve func(context.Context, *Req) (*Reply, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBodySize))
		if err != nil {
			rt.fail(w, r, http.StatusRequestEntityTooLarge, &wire.Error{Code: wire.CodeProtocol, Message: err.Error()})
			return
		}
		var req Req
		if err := wire.Decode(body, &req); err != nil {
			rt.fail(w, r, http.StatusBadRequest, &wire.Error{Code: wire.CodeProtocol, Message: "cannot decode request: " + err.Error()})
			return
		}

		reply, err := serve(r.Context(), &req)
		if err != nil {
			wireErr := wire.NewError(err)
			rt.fail(w, r, statusFor(wireErr.Code), wireErr)
			return
		}
		rt.write(w, r, http.StatusOK, reply)
	}
}

func (rt *router) fail(w http.ResponseWriter, r *http.Request, status int, e *wire.Error) {
	rt.l.Warn("request failed",
		zap.String("route", r.URL.Path),
		zap.String("requestID", middleware.GetReqID(r.Context())),
		zap.String("code", e.Code),
		zap.String("message", e.Message),
	)
	rt.write(w, r, status, e)
}

func (rt *router) write(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := wire.Encode(v)
	if err != nil {
		rt.l.Error("cannot encode reply", zap.String("route", r.URL.Path), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", wire.ContentType)
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

var statuses = map[string]int{
	wire.CodeSparseGraph:     http.StatusConflict,
	wire.CodeInconsistentDag: http.StatusConflict,
	wire.CodeNotFound:        http.StatusNotFound,
	wire.CodeBlobNotFound:    http.StatusNotFound,
	wire.CodeAmbiguous:       http.StatusBadRequest,
	wire.CodeInvalidNode:     http.StatusBadRequest,
	wire.CodeCorruptBlob:     http.StatusBadRequest,
	wire.CodeProtocol:        http.StatusBadRequest,
	wire.CodeUnsupportedDag:  http.StatusUnprocessableEntity,
	wire.CodeUnrelatedRepo:   http.StatusForbidden,
}

func statusFor(code string) int {
	if s, ok := statuses[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}
