package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"nguctl/internal/channel"
	"nguctl/internal/hooks"
	"nguctl/internal/input"
	"nguctl/internal/protocol"
	"nguctl/internal/session"
	"nguctl/internal/window"
)

var errBadRequest = errors.New("bad request")

// action runs one control operation with raw JSON params and returns a
// result to encode, or nil.
type action func(params json.RawMessage) (any, error)

type hooksParams struct {
	Hooks []string `json:"hooks"`
}

type clickParams struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Button  string `json:"button"`
	Special string `json:"special"`
}

type dragParams struct {
	X1     int    `json:"x1"`
	Y1     int    `json:"y1"`
	X2     int    `json:"x2"`
	Y2     int    `json:"y2"`
	Button string `json:"button"`
}

type typeParams struct {
	Text string `json:"text"`
}

type arrowParams struct {
	Direction string `json:"direction"`
}

type holdParams struct {
	Special string `json:"special"`
	MS      int    `json:"ms"`
}

type restoreParams struct {
	// All sends every restore command, not only the pending ones
	All bool `json:"all"`
}

type geometryResult struct {
	Handle  string       `json:"handle"`
	Outer   window.Size  `json:"outer"`
	Client  window.Size  `json:"client"`
	Borders window.Point `json:"borders"`
	Offset  window.Point `json:"offset"`
	Scale   [2]float64   `json:"scale"`
}

func (s *Server) buildActions() map[string]action {
	return map[string]action{
		"status": func(json.RawMessage) (any, error) {
			return s.sess.Status(), nil
		},
		"geometry": func(json.RawMessage) (any, error) {
			g, err := s.sess.Geometry()
			if err != nil {
				return nil, err
			}
			return geometryResult{
				Handle:  fmt.Sprintf("0x%x", g.Handle),
				Outer:   g.Outer.Size(),
				Client:  g.Client.Size(),
				Borders: window.Borders(g),
				Offset:  g.Offset,
				Scale: [2]float64{
					float64(g.Client.Width()) / float64(window.Reference.Width),
					float64(g.Client.Height()) / float64(window.Reference.Height),
				},
			}, nil
		},
		"hooks.enable": func(raw json.RawMessage) (any, error) {
			var p hooksParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			hs := make([]hooks.Hook, 0, len(p.Hooks))
			for _, name := range p.Hooks {
				h, err := hooks.ParseHook(name)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", errBadRequest, err)
				}
				hs = append(hs, h)
			}
			if err := s.sess.EnableHooks(hs...); err != nil {
				return nil, err
			}
			return s.sess.Status(), nil
		},
		"hooks.disable": func(json.RawMessage) (any, error) {
			if err := s.sess.DisableHooks(); err != nil {
				return nil, err
			}
			return s.sess.Status(), nil
		},
		"rearm": func(json.RawMessage) (any, error) {
			if err := s.sess.Rearm(); err != nil {
				return nil, err
			}
			return s.sess.Status(), nil
		},
		"restore": func(raw json.RawMessage) (any, error) {
			var p restoreParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			if p.All {
				return nil, s.sess.ForceRestore()
			}
			return nil, s.sess.Restore()
		},
		"hold": func(raw json.RawMessage) (any, error) {
			var p holdParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			key, err := input.ParseSpecialKey(p.Special)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadRequest, err)
			}
			d := time.Duration(p.MS) * time.Millisecond
			if d <= 0 || d > session.MaxHold {
				return nil, fmt.Errorf("%w: ms must be in 1..%d", errBadRequest, session.MaxHold.Milliseconds())
			}
			return nil, s.sess.HoldSpecial(key, d)
		},
		"click": func(raw json.RawMessage) (any, error) {
			var p clickParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			btn, err := input.ParseButton(p.Button)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadRequest, err)
			}
			var key *input.SpecialKey
			if p.Special != "" {
				k, err := input.ParseSpecialKey(p.Special)
				if err != nil {
					return nil, fmt.Errorf("%w: %w", errBadRequest, err)
				}
				key = &k
			}
			return nil, s.sess.Click(window.Point{X: p.X, Y: p.Y}, btn, key)
		},
		"drag": func(raw json.RawMessage) (any, error) {
			var p dragParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			btn, err := input.ParseButton(p.Button)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadRequest, err)
			}
			return nil, s.sess.Drag(window.Point{X: p.X1, Y: p.Y1}, window.Point{X: p.X2, Y: p.Y2}, btn)
		},
		"type": func(raw json.RawMessage) (any, error) {
			var p typeParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			if p.Text == "" {
				return nil, fmt.Errorf("%w: text is empty", errBadRequest)
			}
			return nil, s.sess.Type(p.Text)
		},
		"arrow": func(raw json.RawMessage) (any, error) {
			var p arrowParams
			if err := decodeParams(raw, &p); err != nil {
				return nil, err
			}
			a, err := input.ParseArrow(p.Direction)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", errBadRequest, err)
			}
			return nil, s.sess.Arrow(a)
		},
	}
}

// decodeParams accepts an empty body as zero-valued params.
func decodeParams(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errBadRequest, err)
	}
	return nil
}

// statusFor maps controller errors onto HTTP status codes. A write that
// failed mid-sequence also leaves restore errors about the dropped handle, so
// transport failures are checked before unavailability.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, protocol.ErrFieldOverflow):
		return http.StatusBadRequest
	case transportFailed(err):
		return http.StatusBadGateway
	case errors.Is(err, channel.ErrChannelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, window.ErrGeometryUnavailable), errors.Is(err, hooks.ErrProtocolMisuse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// transportFailed reports whether err holds a *channel.WriteError for a write
// that reached the transport, as opposed to one refused for lack of a handle.
func transportFailed(err error) bool {
	if werr, ok := err.(*channel.WriteError); ok && !errors.Is(werr.Err, channel.ErrChannelUnavailable) {
		return true
	}
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			if transportFailed(inner) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return transportFailed(e.Unwrap())
	}
	return false
}
