package session

import (
	"time"

	"github.com/shusefs/shusefs/pkg/shelly/model"
)

// ScriptChunkSize is the maximum number of code bytes carried in a
// single Script.PutCode/GetCode chunk (spec.md §4.5).
const ScriptChunkSize = 2048

type scriptListWire struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Enable  bool   `json:"enable"`
	Running bool   `json:"running"`
}

// SetScriptList replaces the cached script roster from a Script.List
// result. A script not present in entries is dropped from the cache;
// this is the only place scripts are wholesale-replaced rather than
// selectively updated, since Script.List is itself a full snapshot.
func (c *Cache) SetScriptList(entries []scriptListWire, now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	present := make(map[int]bool, len(entries))
	for _, e := range entries {
		if e.ID < 0 || e.ID >= model.MaxScripts {
			continue
		}
		present[e.ID] = true
		slot := &c.scripts[e.ID]
		slot.valid = true
		slot.ID = e.ID
		slot.Name = e.Name
		slot.Enable = e.Enable
		slot.Running = e.Running
		slot.Modified = now
	}
	for i := range c.scripts {
		if !present[i] {
			c.scripts[i] = scriptSlot{}
		}
	}
	return nil
}

// ScriptMeta returns a copy of script id's cached slot (metadata and
// code), and whether the slot is known.
func (c *Cache) ScriptMeta(id int) (slot scriptSlot, valid bool) {
	if id < 0 || id >= model.MaxScripts {
		return scriptSlot{}, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.scripts[id]
	return s, s.valid
}

// ValidScriptIDs returns the ids of all known scripts, ascending.
func (c *Cache) ValidScriptIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var ids []int
	for i, s := range c.scripts {
		if s.valid {
			ids = append(ids, i)
		}
	}
	return ids
}

// BeginScriptRead resets the shared retrieval cursor to start reading
// script id from offset 0. Only one script retrieval may be in flight
// at a time across the whole cache (spec.md §3: "a single retrieval
// cursor spans all scripts"), so starting a new read abandons any
// partial read of a different script.
func (c *Cache) BeginScriptRead(id int) error {
	if id < 0 || id >= model.MaxScripts {
		return ErrUnknownInstance
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cursor = scriptCursor{scriptID: id, offset: 0, buffer: nil}
	return nil
}

// AppendScriptChunk appends one Script.GetCode response chunk to the
// in-progress retrieval, provided it belongs to the script the cursor
// currently targets; otherwise it is a stale/out-of-order chunk and is
// rejected without mutating the cursor.
func (c *Cache) AppendScriptChunk(id int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor.scriptID != id {
		return ErrWrongState
	}
	c.cursor.buffer = append(c.cursor.buffer, data...)
	c.cursor.offset += len(data)
	return nil
}

// FinishScriptRead stores the accumulated buffer as script id's cached
// code and clears the cursor, making it available for a new retrieval.
func (c *Cache) FinishScriptRead(id int, now time.Time) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor.scriptID != id {
		return nil, ErrWrongState
	}
	code := c.cursor.buffer
	c.scripts[id].Code = code
	c.scripts[id].Modified = now
	c.cursor = scriptCursor{scriptID: -1}
	return code, nil
}

// CursorScriptID reports which script, if any, currently owns the
// shared retrieval cursor. -1 means idle.
func (c *Cache) CursorScriptID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor.scriptID
}

// CursorOffset reports how many bytes have been accumulated by the
// in-progress retrieval, i.e. the offset the next chunk request should
// resume from.
func (c *Cache) CursorOffset() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cursor.offset
}

// SetScriptUploadReqID records the request id of the final chunk of an
// in-flight Script.PutCode upload, so the dispatcher can recognise
// upload completion by matching a response id against it (spec.md §4.3).
func (c *Cache) SetScriptUploadReqID(id int, reqID uint64) error {
	if id < 0 || id >= model.MaxScripts {
		return ErrUnknownInstance
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[id].LastUploadReqID = reqID
	return nil
}

// CompleteScriptUpload marks an upload finished if reqID matches the
// outstanding final-chunk id for script id, and stamps Modified.
func (c *Cache) CompleteScriptUpload(id int, reqID uint64, now time.Time) bool {
	if id < 0 || id >= model.MaxScripts {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := &c.scripts[id]
	if slot.LastUploadReqID != reqID {
		return false
	}
	slot.Modified = now
	slot.LastUploadReqID = 0
	return true
}

// ChunkCode splits code into ScriptChunkSize-byte pieces for
// Script.PutCode, in order. The caller sends append=false for the
// first chunk and append=true for every chunk thereafter (spec.md
// §4.5).
func ChunkCode(code []byte) [][]byte {
	if len(code) == 0 {
		return [][]byte{{}}
	}
	var chunks [][]byte
	for off := 0; off < len(code); off += ScriptChunkSize {
		end := off + ScriptChunkSize
		if end > len(code) {
			end = len(code)
		}
		chunks = append(chunks, code[off:end])
	}
	return chunks
}
