package storagews

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/gather/storage"
	"voxelgather.ai/internal/sim/model"
)

// Server exposes a storage.Service over websocket. One connection serves
// requests in order; each request gets its own extraction deadline.
type Server struct {
	svc   storage.Service
	items *catalogs.ItemCatalog
	log   *log.Logger

	// ExtractTimeout bounds a single ExtractMatching call.
	ExtractTimeout time.Duration

	upgrader websocket.Upgrader
}

func NewServer(svc storage.Service, items *catalogs.ItemCatalog, logger *log.Logger) *Server {
	return &Server{
		svc:            svc,
		items:          items,
		log:            logger,
		ExtractTimeout: 2 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session := s.handshake(conn)
		if session == "" {
			return
		}

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeExtract {
				continue
			}
			res := s.handleExtract(r.Context(), msg)
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(res); err != nil {
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	if base.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
	}
	if s.items != nil {
		welcome.ItemPalette = protocol.DigestRef{Digest: s.items.PaletteDigest, Count: len(s.items.Palette)}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(welcome); err != nil {
		return ""
	}
	if s.log != nil {
		s.log.Printf("session %s opened", welcome.SessionID)
	}
	return welcome.SessionID
}

func (s *Server) handleExtract(parent context.Context, msg []byte) protocol.ExtractResultMsg {
	res := protocol.ExtractResultMsg{
		Type:            protocol.TypeExtractResult,
		ProtocolVersion: protocol.Version,
		Items:           []protocol.ItemCount{},
	}
	req, err := protocol.DecodeExtractReq(msg)
	if err != nil {
		res.Code = protocol.ErrProtoBadRequest
		res.Message = err.Error()
		return res
	}
	res.ReqID = req.ReqID
	if req.ProtocolVersion != protocol.Version {
		res.Code = protocol.ErrProtoBadRequest
		res.Message = "bad protocol_version"
		return res
	}

	ctx, cancel := context.WithTimeout(parent, s.ExtractTimeout)
	defer cancel()
	access := model.Vec3i{X: req.Access[0], Y: req.Access[1], Z: req.Access[2]}
	got, err := s.svc.ExtractMatching(ctx, access, storage.Query{Tool: req.Tool, Items: req.Items, Max: req.Max})
	if err != nil {
		res.Code, res.Message = codeFor(err), err.Error()
		return res
	}
	for _, st := range got {
		res.Items = append(res.Items, protocol.ItemCount{Item: st.Item, Count: st.Count})
	}
	return res
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, storage.ErrNoAccess):
		return protocol.ErrNoAccess
	case errors.Is(err, storage.ErrUnavailable):
		return protocol.ErrUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return protocol.ErrTimeout
	default:
		return protocol.ErrInternal
	}
}

func errFor(code, msg string) error {
	switch code {
	case protocol.ErrNoAccess:
		return storage.ErrNoAccess
	case protocol.ErrUnavailable:
		return storage.ErrUnavailable
	case protocol.ErrTimeout:
		return context.DeadlineExceeded
	default:
		return errors.New(code + ": " + msg)
	}
}
