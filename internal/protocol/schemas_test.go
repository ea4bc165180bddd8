package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeGather(t *testing.T) {
	m, err := DecodeGather([]byte(`{"type":"GATHER","protocol_version":"1.0","target":"iron ore","count":12,"radius":24}`))
	if err != nil {
		t.Fatalf("DecodeGather: %v", err)
	}
	if m.Target != "iron ore" || m.Count != 12 || m.Radius != 24 {
		t.Fatalf("unexpected msg %+v", m)
	}

	bad := []string{
		`{"type":"GATHER","protocol_version":"1.0","target":"","count":1}`,
		`{"type":"GATHER","protocol_version":"1.0","target":"dirt","count":-1}`,
		`{"type":"GATHER","protocol_version":"1.0","target":"dirt"}`,
		`{"type":"GATHER","protocol_version":"1.0","target":"dirt","count":1,"extra":true}`,
		`{"type":"ACT","protocol_version":"1.0","target":"dirt","count":1}`,
		`not json`,
	}
	for _, b := range bad {
		if _, err := DecodeGather([]byte(b)); err == nil {
			t.Fatalf("expected rejection: %s", b)
		}
	}
}

func TestDecodeExtractReq(t *testing.T) {
	req := ExtractReqMsg{
		Type:            TypeExtract,
		ProtocolVersion: Version,
		ReqID:           "r1",
		Access:          [3]int{1, 64, -3},
		Tool:            "PICKAXE",
	}
	b, _ := json.Marshal(req)
	got, err := DecodeExtractReq(b)
	if err != nil {
		t.Fatalf("DecodeExtractReq: %v", err)
	}
	if got.Access != req.Access || got.Tool != "PICKAXE" {
		t.Fatalf("unexpected req %+v", got)
	}

	req.Tool = ""
	b, _ = json.Marshal(req)
	if _, err := DecodeExtractReq(b); err == nil {
		t.Fatalf("expected rejection without tool or items")
	}
	req.Tool = "SWORD"
	b, _ = json.Marshal(req)
	if _, err := DecodeExtractReq(b); err == nil {
		t.Fatalf("expected rejection of unknown tool category")
	}
}

func TestEventType(t *testing.T) {
	e := NewEvent(7, EventBlockMined)
	if e.Type() != EventBlockMined || e["t"] != uint64(7) {
		t.Fatalf("unexpected event %#v", e)
	}
}
