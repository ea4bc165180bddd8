package storagews

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

const defaultCallTimeout = 5 * time.Second

// Client is a storage.Service backed by a remote storaged. It holds at most
// one connection, dialed lazily and dropped on any transport error so the
// next call redials. Safe for concurrent use; calls are serialized.
type Client struct {
	log    *log.Logger
	dialer *websocket.Dialer
	name   string

	mu      sync.Mutex
	url     string
	conn    *websocket.Conn
	session string
	seq     uint64
}

func NewClient(url string, logger *log.Logger) *Client {
	return &Client{
		url:    strings.TrimSpace(url),
		log:    logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		name:   "gatherd",
	}
}

// Available reports whether a server URL is configured. It does not probe.
func (c *Client) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url != ""
}

// Reconfigure points the client at a new URL, dropping any open connection.
func (c *Client) Reconfigure(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	url = strings.TrimSpace(url)
	if url == c.url {
		return
	}
	c.dropLocked()
	c.url = url
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dropLocked()
	return nil
}

func (c *Client) ExtractMatching(ctx context.Context, access model.Vec3i, q storage.Query) ([]model.ItemStack, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.url == "" {
		return nil, storage.ErrUnavailable
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultCallTimeout)
	}
	conn, err := c.connLocked(ctx, deadline)
	if err != nil {
		return nil, c.transportErr(ctx, err)
	}

	c.seq++
	req := protocol.ExtractReqMsg{
		Type:            protocol.TypeExtract,
		ProtocolVersion: protocol.Version,
		ReqID:           "x" + strconv.FormatUint(c.seq, 10),
		Access:          access.ToArray(),
		Tool:            q.Tool,
		Items:           q.Items,
		Max:             q.Max,
	}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(req); err != nil {
		c.dropLocked()
		return nil, c.transportErr(ctx, err)
	}

	_ = conn.SetReadDeadline(deadline)
	for {
		var res protocol.ExtractResultMsg
		if err := conn.ReadJSON(&res); err != nil {
			c.dropLocked()
			return nil, c.transportErr(ctx, err)
		}
		if res.Type != protocol.TypeExtractResult || res.ReqID != req.ReqID {
			// Not ours.
			continue
		}
		if res.Code != "" {
			return nil, errFor(res.Code, res.Message)
		}
		out := make([]model.ItemStack, 0, len(res.Items))
		for _, it := range res.Items {
			if it.Count > 0 && it.Item != "" {
				out = append(out, model.ItemStack{Item: it.Item, Count: it.Count})
			}
		}
		return out, nil
	}
}

func (c *Client) connLocked(ctx context.Context, deadline time.Time) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	dctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()
	conn, _, err := c.dialer.DialContext(dctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.url, err)
	}

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: c.name}
	_ = conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}
	_ = conn.SetReadDeadline(deadline)
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("expected WELCOME, got %q", welcome.Type)
	}
	c.conn = conn
	c.session = welcome.SessionID
	if c.log != nil {
		c.log.Printf("storage session %s at %s", welcome.SessionID, c.url)
	}
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.conn = nil
	c.session = ""
}

// transportErr maps socket timeouts onto the caller's context error.
func (c *Client) transportErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("storage: %w", ctxErr)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("storage: %w", context.DeadlineExceeded)
	}
	return fmt.Errorf("storage: %w", err)
}
