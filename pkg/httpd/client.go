package httpd

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/oneconcern/dagsync/pkg/core/status"
	"github.com/oneconcern/dagsync/pkg/errors"
	"github.com/oneconcern/dagsync/pkg/wire"
)

var _ wire.Peer = &Client{}

// ErrTransport wraps failures to reach a remote peer
var ErrTransport = errors.New("http transport error")

// ClientOption configures a client
type ClientOption func(*Client)

// WithHTTPClient sets the http client used to reach the remote
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// Client reaches a remote peer served over http
type Client struct {
	base string
	hc   *http.Client
}

// NewClient builds a client for a remote peer at some base URL, e.g. http://localhost:8418
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		base: strings.TrimSuffix(baseURL, "/"),
		hc:   &http.Client{},
	}
	for _, apply := range opts {
		apply(c)
	}
	return c
}

func (c *Client) String() string {
	return c.base
}

// Close releases idle connections
func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func call[Req any, Reply any](ctx context.Context, c *Client, route string, req *Req) (*Reply, error) {
	body, err := wire.Encode(req)
	if err != nil {
		return nil, ErrTransport.Wrap(err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+route, bytes.NewReader(body))
	if err != nil {
		return nil, ErrTransport.Wrap(err)
	}
	httpReq.Header.Set("Content-Type", wire.ContentType)
	httpReq.Header.Set("Accept", wire.ContentType)

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, ErrTransport.Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrTransport.Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		var wireErr wire.Error
		if resp.Header.Get("Content-Type") != wire.ContentType || wire.Decode(data, &wireErr) != nil {
			return nil, ErrTransport.WrapMessage("%s: %s", route, resp.Status)
		}
		return nil, wireErr.Err()
	}

	var reply Reply
	if err := wire.Decode(data, &reply); err != nil {
		return nil, status.ErrProtocol.WrapMessage("cannot decode reply from %s: %v", route, err)
	}
	return &reply, nil
}

// Describe the remote repository
func (c *Client) Describe(ctx context.Context, req *wire.RequestDescribe) (*wire.ReplyDescribe, error) {
	return call[wire.RequestDescribe, wire.ReplyDescribe](ctx, c, RouteDescribe, req)
}

// Resolve an id prefix on the remote
func (c *Client) Resolve(ctx context.Context, req *wire.RequestResolve) (*wire.ReplyResolve, error) {
	return call[wire.RequestResolve, wire.ReplyResolve](ctx, c, RouteResolve, req)
}

// Leaves of a remote dag
func (c *Client) Leaves(ctx context.Context, req *wire.RequestLeaves) (*wire.ReplyLeaves, error) {
	return call[wire.RequestLeaves, wire.ReplyLeaves](ctx, c, RouteLeaves, req)
}

// ProbeGenerations of nodes on the remote
func (c *Client) ProbeGenerations(ctx context.Context, req *wire.RequestGenerationProbe) (*wire.ReplyGenerationProbe, error) {
	return call[wire.RequestGenerationProbe, wire.ReplyGenerationProbe](ctx, c, RouteProbeGenerations, req)
}

// Fragment grown by the remote
func (c *Client) Fragment(ctx context.Context, req *wire.RequestFragment) (*wire.ReplyFragment, error) {
	return call[wire.RequestFragment, wire.ReplyFragment](ctx, c, RouteFragment, req)
}

// ProbeFragment checks the presence of nodes on the remote
func (c *Client) ProbeFragment(ctx context.Context, req *wire.RequestFragmentProbe) (*wire.ReplyFragmentProbe, error) {
	return call[wire.RequestFragmentProbe, wire.ReplyFragmentProbe](ctx, c, RouteProbeFragment, req)
}

// SendNodes to the remote
func (c *Client) SendNodes(ctx context.Context, req *wire.SendNodes) (*wire.ReplySendNodes, error) {
	return call[wire.SendNodes, wire.ReplySendNodes](ctx, c, RouteSendNodes, req)
}

// BlobPresence checks the presence of blobs on the remote
func (c *Client) BlobPresence(ctx context.Context, req *wire.RequestBlobPresence) (*wire.ReplyBlobPresence, error) {
	return call[wire.RequestBlobPresence, wire.ReplyBlobPresence](ctx, c, RouteBlobPresence, req)
}

// SendBlobs to the remote
func (c *Client) SendBlobs(ctx context.Context, req *wire.SendBlobs) (*wire.ReplySendBlobs, error) {
	return call[wire.SendBlobs, wire.ReplySendBlobs](ctx, c, RouteSendBlobs, req)
}

// FetchBlobs from the remote
func (c *Client) FetchBlobs(ctx context.Context, req *wire.RequestFetchBlobs) (*wire.ReplyFetchBlobs, error) {
	return call[wire.RequestFetchBlobs, wire.ReplyFetchBlobs](ctx, c, RouteFetchBlobs, req)
}
