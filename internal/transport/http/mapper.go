package http

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vovakirdan/lobby-server/internal/core"
	"github.com/vovakirdan/lobby-server/internal/proto"
)

func (h *WSHandler) handleInbound(ctx context.Context, client *core.Client, inbound proto.Inbound) *core.Event {
	switch inbound.Type {
	case proto.InboundTypeHello:
		var hello proto.HelloData
		if err := decodeData(inbound.Data, &hello); err != nil {
			return badRequest(inbound.ID, "invalid hello payload")
		}
		if hello.Protocol != 0 && hello.Protocol != proto.ProtocolVersion {
			return core.ErrorEvent(inbound.ID, &core.CoreError{
				Code:    core.ErrCodeUnsupportedVersion,
				Message: fmt.Sprintf("protocol %d not supported, server speaks %d", hello.Protocol, proto.ProtocolVersion),
			})
		}
		return optionalAck(inbound.ID)

	case proto.InboundTypeCreateSession:
		var data proto.CreateSessionData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid create_session payload")
		}
		outcome, err := h.coord.CreateSession(ctx, client.ID, inbound.ID, userFromProto(data.User))
		return h.outcomeReply(client.ID, inbound.ID, outcome, err)

	case proto.InboundTypeJoinSession:
		var data proto.JoinSessionData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid join_session payload")
		}
		outcome, err := h.coord.JoinSession(ctx, client.ID, inbound.ID, data.Code, userFromProto(data.User))
		return h.outcomeReply(client.ID, inbound.ID, outcome, err)

	case proto.InboundTypeRejoinSession:
		var data proto.RejoinSessionData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid rejoin_session payload")
		}
		outcome, err := h.coord.RejoinSession(ctx, client.ID, inbound.ID, data.SessionID, data.UserID)
		if err == nil && !outcome.NeedsName {
			// The session_updated push is the real answer.
			return optionalAck(inbound.ID)
		}
		return h.outcomeReply(client.ID, inbound.ID, outcome, err)

	case proto.InboundTypeSetDisplayName:
		var data proto.SetDisplayNameData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid set_display_name payload")
		}
		outcome, err := h.coord.SetDisplayName(ctx, client.ID, data.UserID, data.Name)
		return h.outcomeReply(client.ID, inbound.ID, outcome, err)

	case proto.InboundTypeLeaveSession:
		if _, err := h.coord.LeaveSession(ctx, client.ID); err != nil {
			return h.errorReply(client.ID, inbound.ID, err)
		}
		return optionalAck(inbound.ID)

	case proto.InboundTypeFindMyActiveSessions:
		var data proto.FindMyActiveSessionsData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid find_my_active_sessions payload")
		}
		code, _ := h.coord.FindActiveSession(data.UserID, data.Name)
		return ackEvent(inbound.ID, proto.ActiveSession{SessionID: code})

	case proto.InboundTypeCheckSessionExists:
		var data proto.CheckSessionExistsData
		if err := decodeData(inbound.Data, &data); err != nil {
			return badRequest(inbound.ID, "invalid check_session_exists payload")
		}
		return ackEvent(inbound.ID, proto.SessionExists{Exists: h.coord.SessionExists(data.Code)})

	default:
		return badRequest(inbound.ID, "unknown message type")
	}
}

func (h *WSHandler) outcomeReply(connID, requestID string, outcome core.Outcome, err error) *core.Event {
	if err != nil {
		return h.errorReply(connID, requestID, err)
	}
	if outcome.NeedsName {
		user := outcome.User
		return &core.Event{
			Kind:      core.EventNameRequired,
			RequestID: requestID,
			User:      &user,
			Action:    outcome.Action,
		}
	}
	if outcome.Session != nil {
		return ackEvent(requestID, sessionToProto(*outcome.Session))
	}
	return ackEvent(requestID, userToProto(outcome.User))
}

func (h *WSHandler) errorReply(connID, requestID string, err error) *core.Event {
	ce := core.ToCoreError(err)
	if ce.Code == core.ErrCodeInternal {
		h.log.Error().Err(err).Str("conn_id", connID).Msg("request failed")
	} else {
		h.log.Debug().Err(err).Str("conn_id", connID).Str("code", ce.Code).Msg("request rejected")
	}
	return core.ErrorEvent(requestID, ce)
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func badRequest(requestID, msg string) *core.Event {
	return core.ErrorEvent(requestID, &core.CoreError{Code: core.ErrCodeBadRequest, Message: msg})
}

func ackEvent(requestID string, data any) *core.Event {
	return &core.Event{Kind: core.EventAck, RequestID: requestID, Data: data}
}

// optionalAck acknowledges fire-and-forget requests only when the client asked for it.
func optionalAck(requestID string) *core.Event {
	if requestID == "" {
		return nil
	}
	return ackEvent(requestID, nil)
}

func userFromProto(u proto.User) core.User {
	return core.User{ID: u.UserID, DisplayName: u.DisplayName}
}

func userToProto(u core.User) proto.User {
	return proto.User{UserID: u.ID, DisplayName: u.DisplayName}
}

func sessionToProto(s core.Session) proto.Session {
	members := make([]proto.User, 0, len(s.Members))
	for _, m := range s.Members {
		members = append(members, userToProto(m))
	}
	return proto.Session{
		Code:      s.Code,
		Members:   members,
		Version:   s.Version,
		CreatedAt: s.CreatedAt.Unix(),
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSessionUpdated:
		if event.Session == nil {
			return proto.Outbound{Type: proto.OutboundTypeEvent, Event: proto.EventSessionUpdated}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSessionUpdated,
			Data:  sessionToProto(*event.Session),
		}
	case core.EventNameRequired:
		data := proto.NameRequired{Action: event.Action.String()}
		if event.User != nil {
			data.UserID = event.User.ID
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			ID:    event.RequestID,
			Event: proto.EventNameRequired,
			Data:  data,
		}
	case core.EventAck:
		return proto.Outbound{
			Type: proto.OutboundTypeAck,
			ID:   event.RequestID,
			Data: event.Data,
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{
				Type:  proto.OutboundTypeError,
				ID:    event.RequestID,
				Error: &proto.Error{Code: core.ErrCodeInternal, Msg: "unknown error"},
			}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			ID:    event.RequestID,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
