package stream

import (
	opencode "github.com/sst/opencode-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/opencode-remote/internal/api"
	"github.com/opencode-ai/opencode-remote/internal/event"
	"github.com/opencode-ai/opencode-remote/pkg/types"
)

// Normalize maps one SDK stream event onto the domain union, tagging it
// with the originating server. Variants outside the typed cases are decoded
// from the raw payload; anything still unrecognized becomes an Unknown
// event so the reducer can merge it generically. The bool is false only for
// events that carry nothing worth forwarding.
func Normalize(evt opencode.EventListResponse, serverID string) (event.Event, bool) {
	switch v := evt.AsUnion().(type) {
	case opencode.EventListResponseEventSessionCreated:
		info := api.ConvertSession(v.Properties.Info)
		return event.Event{Type: event.SessionCreated, ServerID: serverID, Data: event.SessionCreatedData{Info: &info}}, true

	case opencode.EventListResponseEventSessionUpdated:
		info := api.ConvertSession(v.Properties.Info)
		return event.Event{Type: event.SessionUpdated, ServerID: serverID, Data: event.SessionUpdatedData{Info: &info}}, true

	case opencode.EventListResponseEventSessionDeleted:
		info := api.ConvertSession(v.Properties.Info)
		return event.Event{Type: event.SessionDeleted, ServerID: serverID, Data: event.SessionDeletedData{Info: &info}}, true

	case opencode.EventListResponseEventSessionIdle:
		return event.Event{Type: event.SessionIdle, ServerID: serverID, Data: event.SessionIdleData{SessionID: v.Properties.SessionID}}, true

	case opencode.EventListResponseEventSessionError:
		return event.Event{Type: event.SessionError, ServerID: serverID, Data: event.SessionErrorData{
			SessionID: v.Properties.SessionID,
			Error:     string(v.Properties.Error.Name),
		}}, true

	case opencode.EventListResponseEventMessageUpdated:
		return event.Event{Type: event.MessageUpdated, ServerID: serverID, Data: event.MessageUpdatedData{
			SessionID: v.Properties.Info.SessionID,
			MessageID: v.Properties.Info.ID,
			Role:      string(v.Properties.Info.Role),
		}}, true

	case opencode.EventListResponseEventMessagePartUpdated:
		return event.Event{Type: event.MessagePartUpdated, ServerID: serverID, Data: event.MessagePartUpdatedData{
			SessionID: v.Properties.Part.SessionID,
			MessageID: v.Properties.Part.MessageID,
			PartID:    v.Properties.Part.ID,
			PartType:  string(v.Properties.Part.Type),
		}}, true

	case opencode.EventListResponseEventMessageRemoved:
		return event.Event{Type: event.MessageRemoved, ServerID: serverID, Data: event.MessageRemovedData{
			SessionID: v.Properties.SessionID,
			MessageID: v.Properties.MessageID,
		}}, true
	}

	return normalizeRaw(string(evt.Type), evt.JSON.RawJSON(), serverID)
}

// normalizeRaw handles stream event types the SDK union cases above do not
// cover, pulling fields straight from the wire payload.
func normalizeRaw(rawType, raw, serverID string) (event.Event, bool) {
	props := gjson.Get(raw, "properties")

	switch rawType {
	case "server.connected":
		return event.Event{Type: event.ServerConnected, ServerID: serverID}, true

	case "permission.updated", "permission.asked":
		perm := types.Permission{
			ID:        props.Get("id").String(),
			SessionID: props.Get("sessionID").String(),
			Type:      props.Get("type").String(),
			Title:     props.Get("title").String(),
		}
		for _, p := range props.Get("pattern").Array() {
			perm.Pattern = append(perm.Pattern, p.String())
		}
		if meta := props.Get("metadata"); meta.IsObject() {
			perm.Metadata = map[string]any{}
			meta.ForEach(func(key, value gjson.Result) bool {
				perm.Metadata[key.String()] = value.Value()
				return true
			})
		}
		return event.Event{Type: event.PermissionRequested, ServerID: serverID, Data: event.PermissionRequestedData{Permission: perm}}, true

	case "question.asked":
		data := event.QuestionAskedData{SessionID: props.Get("sessionID").String()}
		for _, q := range props.Get("questions").Array() {
			question := types.Question{Text: q.Get("text").String()}
			if question.Text == "" {
				question.Text = q.String()
			}
			for _, o := range q.Get("options").Array() {
				question.Options = append(question.Options, o.String())
			}
			data.Questions = append(data.Questions, question)
		}
		return event.Event{Type: event.QuestionAsked, ServerID: serverID, Data: data}, true

	case "file.edited":
		return event.Event{Type: event.FileEdited, ServerID: serverID, Data: event.FileEditedData{
			File: props.Get("file").String(),
		}}, true

	case "":
		return event.Event{}, false
	}

	// Unlisted types are forwarded for generic merge and never notified.
	sessionID := props.Get("sessionID").String()
	if sessionID == "" {
		sessionID = props.Get("info.sessionID").String()
	}
	return event.Event{Type: event.Unknown, ServerID: serverID, Data: event.UnknownData{
		RawType:   rawType,
		SessionID: sessionID,
		Raw:       raw,
	}}, true
}
