package session

import (
	"encoding/json"
	"fmt"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// ClientSrc is the "src" field this client stamps on every outbound
// JSON-RPC request (spec.md §6: `"src":"shusefs-client"`).
const ClientSrc = "shusefs-client"

// wireRequest is the JSON-RPC 2.0 request envelope sent on the wire.
type wireRequest struct {
	ID     uint64      `json:"id"`
	Src    string      `json:"src"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// instanceMethod tags a per-instance method class with the instance id
// it targets, e.g. ("Switch.GetConfig", 0) -> "Switch.GetConfig#0". The
// tagged string is what gets cached as Entry.Method, letting the
// dispatcher recover both class and id from a bare response id without
// any substring parsing of JSON-RPC method names themselves (spec.md §9
// design note).
func instanceMethod(class string, id int) string {
	return fmt.Sprintf("%s#%d", class, id)
}

// Intents is the RPC intention layer (C5): one method per verb the
// filesystem adaptor can invoke. Every verb builds a JSON-RPC request,
// enqueues it on the pending-request table, and returns immediately —
// writes are fire-and-forget (spec.md §5); nothing here blocks on a
// response.
type Intents struct {
	table *Table
	cache *Cache
}

// NewIntents builds an RPC intention layer over a pending-request
// table and the cache it keeps informed of in-flight chunked
// transfers.
func NewIntents(table *Table, cache *Cache) *Intents {
	return &Intents{table: table, cache: cache}
}

// enqueue marshals a request and reserves its table slot atomically:
// the id embedded in the wire payload and the id the table assigns are
// always the same id, even under concurrent callers (id reservation
// and payload construction happen under one Table lock via
// EnqueueFunc, rather than peeking an id and enqueuing separately).
func (in *Intents) enqueue(method string, params interface{}) (uint64, error) {
	id, err := in.table.EnqueueFunc(method, func(id uint64) (string, error) {
		req := wireRequest{ID: id, Src: ClientSrc, Method: method, Params: params}
		payload, err := json.Marshal(req)
		return string(payload), err
	})
	if err != nil {
		if _, ok := err.(*EnqueueError); ok {
			return 0, err
		}
		return 0, &InvalidArgumentError{Verb: method, Err: err}
	}
	return id, nil
}

func (in *Intents) enqueueRaw(cacheMethod, wireMethod string, rawParams json.RawMessage) (uint64, error) {
	if len(rawParams) > 0 && !json.Valid(rawParams) {
		return 0, &InvalidArgumentError{Verb: wireMethod, Err: fmt.Errorf("params is not valid JSON")}
	}
	id, err := in.table.EnqueueFunc(cacheMethod, func(id uint64) (string, error) {
		req := struct {
			ID     uint64          `json:"id"`
			Src    string          `json:"src"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params,omitempty"`
		}{ID: id, Src: ClientSrc, Method: wireMethod, Params: rawParams}
		payload, err := json.Marshal(req)
		return string(payload), err
	})
	if err != nil {
		if _, ok := err.(*EnqueueError); ok {
			return 0, err
		}
		return 0, &InvalidArgumentError{Verb: wireMethod, Err: err}
	}
	return id, nil
}

// RefreshSystemConfig issues Sys.GetConfig.
func (in *Intents) RefreshSystemConfig() (uint64, error) {
	return in.enqueue("Sys.GetConfig", nil)
}

// SetSystemConfig issues Sys.SetConfig with user-supplied params,
// validated as JSON before being wired out.
func (in *Intents) SetSystemConfig(params json.RawMessage) (uint64, error) {
	return in.enqueueRaw("Sys.SetConfig", "Sys.SetConfig", params)
}

// RefreshMQTTConfig issues MQTT.GetConfig.
func (in *Intents) RefreshMQTTConfig() (uint64, error) {
	return in.enqueue("MQTT.GetConfig", nil)
}

// SetMQTTConfig issues MQTT.SetConfig with user-supplied params.
func (in *Intents) SetMQTTConfig(params json.RawMessage) (uint64, error) {
	return in.enqueueRaw("MQTT.SetConfig", "MQTT.SetConfig", params)
}

// RefreshSwitchConfig issues Switch.GetConfig for instance id.
func (in *Intents) RefreshSwitchConfig(id int) (uint64, error) {
	if id < 0 || id >= model.MaxSwitches {
		return 0, ErrUnknownInstance
	}
	return in.enqueue(instanceMethod("Switch.GetConfig", id), map[string]int{"id": id})
}

// SetSwitchConfig issues Switch.SetConfig for instance id with
// user-supplied config fields merged under "config".
func (in *Intents) SetSwitchConfig(id int, params json.RawMessage) (uint64, error) {
	if id < 0 || id >= model.MaxSwitches {
		return 0, ErrUnknownInstance
	}
	merged, err := mergeIDParams(id, params)
	if err != nil {
		return 0, &InvalidArgumentError{Verb: "Switch.SetConfig", Err: err}
	}
	return in.enqueueRaw(instanceMethod("Switch.SetConfig", id), "Switch.SetConfig", merged)
}

// RefreshSwitchStatus issues Switch.GetStatus for instance id.
func (in *Intents) RefreshSwitchStatus(id int) (uint64, error) {
	if id < 0 || id >= model.MaxSwitches {
		return 0, ErrUnknownInstance
	}
	return in.enqueue(instanceMethod("Switch.GetStatus", id), map[string]int{"id": id})
}

// SetSwitchOutput issues Switch.Set to drive output on/off. The
// response body carries the post-change status, which the dispatcher
// feeds through the same selective update path as a GetStatus result
// (spec.md §4.3).
func (in *Intents) SetSwitchOutput(id int, on bool) (uint64, error) {
	if id < 0 || id >= model.MaxSwitches {
		return 0, ErrUnknownInstance
	}
	return in.enqueue(instanceMethod("Switch.Set", id), map[string]interface{}{"id": id, "on": on})
}

// RefreshInputConfig issues Input.GetConfig for instance id.
func (in *Intents) RefreshInputConfig(id int) (uint64, error) {
	if id < 0 || id >= model.MaxInputs {
		return 0, ErrUnknownInstance
	}
	return in.enqueue(instanceMethod("Input.GetConfig", id), map[string]int{"id": id})
}

// SetInputConfig issues Input.SetConfig for instance id.
func (in *Intents) SetInputConfig(id int, params json.RawMessage) (uint64, error) {
	if id < 0 || id >= model.MaxInputs {
		return 0, ErrUnknownInstance
	}
	merged, err := mergeIDParams(id, params)
	if err != nil {
		return 0, &InvalidArgumentError{Verb: "Input.SetConfig", Err: err}
	}
	return in.enqueueRaw(instanceMethod("Input.SetConfig", id), "Input.SetConfig", merged)
}

// RefreshInputStatus issues Input.GetStatus for instance id.
func (in *Intents) RefreshInputStatus(id int) (uint64, error) {
	if id < 0 || id >= model.MaxInputs {
		return 0, ErrUnknownInstance
	}
	return in.enqueue(instanceMethod("Input.GetStatus", id), map[string]int{"id": id})
}

// RefreshAllConfigs re-issues GetConfig for every discovered switch and
// input, and for system/MQTT — the response to any config_changed
// NotifyEvent, whichever component the event names.
func (in *Intents) RefreshAllConfigs() []error {
	var errs []error
	if _, err := in.RefreshSystemConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := in.RefreshMQTTConfig(); err != nil {
		errs = append(errs, err)
	}
	for _, id := range in.cache.ValidSwitchIDs() {
		if _, err := in.RefreshSwitchConfig(id); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range in.cache.ValidInputIDs() {
		if _, err := in.RefreshInputConfig(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ListScripts issues Script.List.
func (in *Intents) ListScripts() (uint64, error) {
	return in.enqueue("Script.List", nil)
}

// BeginScriptCodeFetch resets the shared retrieval cursor to script id
// and issues the first Script.GetCode chunk request. Only one script
// retrieval can be in flight at a time (spec.md §3).
func (in *Intents) BeginScriptCodeFetch(id int) (uint64, error) {
	if err := in.cache.BeginScriptRead(id); err != nil {
		return 0, err
	}
	return in.enqueue(instanceMethod("Script.GetCode", id),
		map[string]int{"id": id, "offset": 0, "len": ScriptChunkSize})
}

// ContinueScriptCodeFetch issues the next Script.GetCode chunk request
// starting at offset, for a retrieval already begun with
// BeginScriptCodeFetch.
func (in *Intents) ContinueScriptCodeFetch(id, offset int) (uint64, error) {
	if in.cache.CursorScriptID() != id {
		return 0, ErrWrongState
	}
	return in.enqueue(instanceMethod("Script.GetCode", id),
		map[string]int{"id": id, "offset": offset, "len": ScriptChunkSize})
}

// PutScriptCode splits code into ScriptChunkSize chunks and enqueues a
// Script.PutCode request per chunk, append=false for the first and
// append=true thereafter (spec.md §4.5). Returns the request ids in
// order; the last one is also recorded against the script slot so the
// dispatcher can recognise upload completion.
func (in *Intents) PutScriptCode(id int, code []byte) ([]uint64, error) {
	if id < 0 || id >= model.MaxScripts {
		return nil, ErrUnknownInstance
	}
	if len(code) > model.MaxScriptCodeBytes {
		return nil, &InvalidArgumentError{Verb: "Script.PutCode", Err: fmt.Errorf("code exceeds %d bytes", model.MaxScriptCodeBytes)}
	}

	chunks := ChunkCode(code)
	ids := make([]uint64, 0, len(chunks))
	for i, chunk := range chunks {
		reqID, err := in.enqueue(instanceMethod("Script.PutCode", id), map[string]interface{}{
			"id":     id,
			"code":   string(chunk),
			"append": i > 0,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, reqID)
	}
	if len(ids) > 0 {
		if err := in.cache.SetScriptUploadReqID(id, ids[len(ids)-1]); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

// RefreshSchedules issues Schedule.List.
func (in *Intents) RefreshSchedules() (uint64, error) {
	return in.enqueue("Schedule.List", nil)
}

// SyncSchedules issues the Create/Update/Delete RPCs a ScheduleDiff
// calls for. Returns the request ids in submission order.
func (in *Intents) SyncSchedules(diff ScheduleDiff) ([]uint64, error) {
	var ids []uint64
	for _, c := range diff.Create {
		id, err := in.enqueue("Schedule.Create", map[string]interface{}{
			"enable":   c.Enable,
			"timespec": c.Timespec,
			"calls":    c.Calls,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	for _, u := range diff.Update {
		id, err := in.enqueue("Schedule.Update", map[string]interface{}{
			"id":       u.ID,
			"enable":   u.Enable,
			"timespec": u.Timespec,
			"calls":    u.Calls,
		})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	for _, d := range diff.Delete {
		id, err := in.enqueue("Schedule.Delete", map[string]int{"id": d})
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// mergeIDParams merges {"id": id} with a user-supplied raw JSON object
// (which must itself be a JSON object) into the shape Switch/Input
// SetConfig expects: {"id": id, "config": {...}}.
func mergeIDParams(id int, configParams json.RawMessage) (json.RawMessage, error) {
	if len(configParams) == 0 {
		return nil, fmt.Errorf("config params required")
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(configParams, &probe); err != nil {
		return nil, fmt.Errorf("config must be a JSON object: %w", err)
	}
	wrapped := struct {
		ID     int             `json:"id"`
		Config json.RawMessage `json:"config"`
	}{ID: id, Config: configParams}
	return json.Marshal(wrapped)
}
