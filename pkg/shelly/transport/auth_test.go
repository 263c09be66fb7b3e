package transport

import (
	"encoding/json"
	"testing"
)

func TestParseAuthChallenge(t *testing.T) {
	msg := `{"realm":"shellyplus1-aabbcc","nonce":1234567890,"algorithm":"MD5","nc":1}`

	c, err := parseAuthChallenge(msg)
	if err != nil {
		t.Fatalf("parseAuthChallenge failed: %v", err)
	}
	if c.Realm != "shellyplus1-aabbcc" {
		t.Errorf("Realm = %q", c.Realm)
	}
	if c.Nonce != 1234567890 {
		t.Errorf("Nonce = %d", c.Nonce)
	}
}

func TestParseAuthChallenge_MissingRealm(t *testing.T) {
	_, err := parseAuthChallenge(`{"nonce":1}`)
	if err == nil {
		t.Error("expected error for missing realm")
	}
}

func TestParseAuthChallenge_InvalidJSON(t *testing.T) {
	_, err := parseAuthChallenge(`not json`)
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestComputeDigestAuth_Deterministic(t *testing.T) {
	c := authChallenge{Realm: "shellyplus1-aabbcc", Nonce: 42, Nc: 1}

	a1 := computeDigestAuth(c, "admin", "secret", 99)
	a2 := computeDigestAuth(c, "admin", "secret", 99)

	if a1.Response != a2.Response {
		t.Error("computeDigestAuth should be deterministic for identical inputs")
	}
	if a1.Response == "" {
		t.Error("Response should not be empty")
	}
	if len(a1.Response) != 32 {
		t.Errorf("Response length = %d, want 32 (MD5 hex)", len(a1.Response))
	}
}

func TestComputeDigestAuth_DifferentPasswordsDiffer(t *testing.T) {
	c := authChallenge{Realm: "shellyplus1-aabbcc", Nonce: 42, Nc: 1}

	a1 := computeDigestAuth(c, "admin", "secret1", 99)
	a2 := computeDigestAuth(c, "admin", "secret2", 99)

	if a1.Response == a2.Response {
		t.Error("different passwords should produce different digests")
	}
}

func TestComputeDigestAuth_DefaultsNc(t *testing.T) {
	c := authChallenge{Realm: "r", Nonce: 1, Nc: 0}
	a := computeDigestAuth(c, "admin", "pw", 1)
	if a.Nc != 1 {
		t.Errorf("Nc = %d, want 1 when challenge omits it", a.Nc)
	}
}

func TestInjectAuth(t *testing.T) {
	payload := `{"id":1,"src":"shusefs-client","method":"Shelly.GetStatus","params":{"id":0}}`
	auth := authParams{Realm: "r", Username: "admin", Nonce: 1, Cnonce: 2, Response: "deadbeef", Algorithm: "MD5", Nc: 1}

	out, err := injectAuth(payload, auth)
	if err != nil {
		t.Fatalf("injectAuth failed: %v", err)
	}

	var req struct {
		Params struct {
			ID   int             `json:"id"`
			Auth json.RawMessage `json:"auth"`
		} `json:"params"`
	}
	if err := json.Unmarshal([]byte(out), &req); err != nil {
		t.Fatalf("unmarshal retried payload: %v", err)
	}
	if req.Params.ID != 0 {
		t.Errorf("original params.id should be preserved, got %d", req.Params.ID)
	}
	if len(req.Params.Auth) == 0 {
		t.Error("params.auth should be set")
	}

	var gotAuth authParams
	if err := json.Unmarshal(req.Params.Auth, &gotAuth); err != nil {
		t.Fatalf("unmarshal auth object: %v", err)
	}
	if gotAuth.Response != "deadbeef" {
		t.Errorf("Response = %q", gotAuth.Response)
	}
}

func TestInjectAuth_NoExistingParams(t *testing.T) {
	payload := `{"id":1,"src":"shusefs-client","method":"Sys.GetConfig"}`
	auth := authParams{Realm: "r", Username: "admin", Nonce: 1, Cnonce: 2, Response: "abc", Algorithm: "MD5", Nc: 1}

	out, err := injectAuth(payload, auth)
	if err != nil {
		t.Fatalf("injectAuth failed: %v", err)
	}
	if out == "" {
		t.Error("expected non-empty output")
	}
}

func TestInjectAuth_InvalidPayload(t *testing.T) {
	_, err := injectAuth("not json", authParams{})
	if err == nil {
		t.Error("expected error for invalid payload")
	}
}
