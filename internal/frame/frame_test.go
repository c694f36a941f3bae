package frame

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tags := []Tag{TagProxyToDevice, TagDeviceToProxy, TagOpen, TagClose}
	for _, tag := range tags {
		payload := []byte("rtsp bytes")
		encoded := Encode(tag, payload)

		gotTag, gotPayload, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode(encode(%v)) error: %v", tag, err)
		}
		if gotTag != tag {
			t.Fatalf("tag mismatch: want %v got %v", tag, gotTag)
		}
		if string(gotPayload) != string(payload) {
			t.Fatalf("payload mismatch: want %q got %q", payload, gotPayload)
		}
	}
}

func TestEncodeZeroLengthPayload(t *testing.T) {
	encoded := Encode(TagOpen, nil)
	if len(encoded) != 1 {
		t.Fatalf("expected 1-byte message for zero-length payload, got %d bytes", len(encoded))
	}
	tag, payload, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if tag != TagOpen || len(payload) != 0 {
		t.Fatalf("unexpected decode result: tag=%v payload=%v", tag, payload)
	}
}

func TestDecodeEmptyMessage(t *testing.T) {
	if _, _, err := Decode(nil); err == nil {
		t.Fatal("expected error decoding empty message")
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	if _, _, err := Decode([]byte{99, 1, 2, 3}); err == nil {
		t.Fatal("expected error decoding unrecognized tag")
	}
}

func TestTagIsValid(t *testing.T) {
	valid := []Tag{TagProxyToDevice, TagDeviceToProxy, TagOpen, TagClose}
	for _, tag := range valid {
		if !tag.IsValid() {
			t.Errorf("expected tag %v to be valid", tag)
		}
	}
	if Tag(0).IsValid() {
		t.Error("expected tag 0 to be invalid")
	}
	if Tag(5).IsValid() {
		t.Error("expected tag 5 to be invalid")
	}
}

func TestParseCommandCaseInsensitiveVerb(t *testing.T) {
	cmd := ParseCommand("hello p1 devA")
	if cmd.Verb != VerbHello {
		t.Fatalf("expected HELLO verb, got %q", cmd.Verb)
	}
	if len(cmd.Args) != 2 || cmd.Args[0] != "p1" || cmd.Args[1] != "devA" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestParseCommandWhitespaceSplit(t *testing.T) {
	cmd := ParseCommand("AUTH   devA   AAAA==")
	if cmd.Verb != VerbAuth {
		t.Fatalf("expected AUTH verb, got %q", cmd.Verb)
	}
	if len(cmd.Args) != 2 || cmd.Args[0] != "devA" || cmd.Args[1] != "AAAA==" {
		t.Fatalf("unexpected args: %v", cmd.Args)
	}
}

func TestParseCommandUnknownVerbIgnored(t *testing.T) {
	cmd := ParseCommand("GARBAGE line here")
	if cmd.Verb != "" {
		t.Fatalf("expected unknown verb to be ignored, got %q", cmd.Verb)
	}
}

func TestParseCommandEmptyLine(t *testing.T) {
	cmd := ParseCommand("   ")
	if cmd.Verb != "" {
		t.Fatalf("expected empty line to yield no verb, got %q", cmd.Verb)
	}
}

func TestParseHelloArgsBothForms(t *testing.T) {
	h, ok := ParseHelloArgs([]string{"devA"})
	if !ok || h.DeviceID != "devA" || h.PayloadID != "" {
		t.Fatalf("one-arg HELLO parse failed: %+v ok=%v", h, ok)
	}

	h, ok = ParseHelloArgs([]string{"p1", "devA"})
	if !ok || h.DeviceID != "devA" || h.PayloadID != "p1" {
		t.Fatalf("two-arg HELLO parse failed: %+v ok=%v", h, ok)
	}

	if _, ok := ParseHelloArgs([]string{}); ok {
		t.Fatal("expected zero-arg HELLO to fail parsing")
	}
	if _, ok := ParseHelloArgs([]string{"a", "b", "c"}); ok {
		t.Fatal("expected three-arg HELLO to fail parsing")
	}
}

func TestParseAuthArgs(t *testing.T) {
	a, ok := ParseAuthArgs([]string{"devA", "c2lnbmF0dXJl"})
	if !ok || a.DeviceID != "devA" || a.SigB64 != "c2lnbmF0dXJl" {
		t.Fatalf("AUTH parse failed: %+v ok=%v", a, ok)
	}
	if _, ok := ParseAuthArgs([]string{"devA"}); ok {
		t.Fatal("expected one-arg AUTH to fail parsing")
	}
}
