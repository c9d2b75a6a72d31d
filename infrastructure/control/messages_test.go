package control

import (
	"bytes"
	"testing"

	"tunnelcore/domain/protocol"
)

func TestAuthRequest_RoundTrip(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeAuthRequest("alice", "hunter2", "1.0.0")
	if err != nil {
		t.Fatalf("EncodeAuthRequest: %v", err)
	}
	got, err := DecodeAuthRequest(encoded)
	if err != nil {
		t.Fatalf("DecodeAuthRequest: %v", err)
	}
	if got.Username != "alice" || got.Password != "hunter2" || got.ClientVersion != "1.0.0" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestAuthRequest_MissingFieldsRejected(t *testing.T) {
	t.Parallel()
	encoded, _ := EncodeAuthRequest("", "hunter2", "1.0.0")
	if _, err := DecodeAuthRequest(encoded); err == nil {
		t.Fatal("expected error for empty username")
	}
}

func TestAuthSuccess_RoundTrip(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{0x42}, protocol.KeySize)
	encoded, err := EncodeAuthSuccess("tok123", "10.8.0.2", key)
	if err != nil {
		t.Fatalf("EncodeAuthSuccess: %v", err)
	}
	got, err := DecodeAuthSuccess(encoded)
	if err != nil {
		t.Fatalf("DecodeAuthSuccess: %v", err)
	}
	if got.SessionToken != "tok123" || got.AssignedIP != "10.8.0.2" || !bytes.Equal(got.MasterKey, key) {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestAuthSuccess_WrongKeySizeRejected(t *testing.T) {
	t.Parallel()
	encoded, _ := EncodeAuthSuccess("tok123", "10.8.0.2", []byte{1, 2, 3})
	if _, err := DecodeAuthSuccess(encoded); err == nil {
		t.Fatal("expected error for undersized master key")
	}
}

func TestAuthFailure_RoundTrip(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeAuthFailure(protocol.ErrInvalidCredentials, "bad credentials")
	if err != nil {
		t.Fatalf("EncodeAuthFailure: %v", err)
	}
	got, err := DecodeAuthFailure(encoded)
	if err != nil {
		t.Fatalf("DecodeAuthFailure: %v", err)
	}
	if got.ErrorCode != protocol.ErrInvalidCredentials || got.ErrorMessage != "bad credentials" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestPingPong_RoundTrip(t *testing.T) {
	t.Parallel()
	pingEncoded, err := EncodePing(1000)
	if err != nil {
		t.Fatalf("EncodePing: %v", err)
	}
	ping, err := DecodePing(pingEncoded)
	if err != nil {
		t.Fatalf("DecodePing: %v", err)
	}
	if ping.Timestamp != 1000 {
		t.Fatalf("got timestamp %d, want 1000", ping.Timestamp)
	}

	pongEncoded, err := EncodePong(ping.Timestamp, 1001)
	if err != nil {
		t.Fatalf("EncodePong: %v", err)
	}
	pong, err := DecodePong(pongEncoded)
	if err != nil {
		t.Fatalf("DecodePong: %v", err)
	}
	if pong.PingTimestamp != 1000 || pong.PongTimestamp != 1001 {
		t.Fatalf("unexpected decode: %+v", pong)
	}
}

func TestDisconnect_RoundTrip(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeDisconnect("client shutdown")
	if err != nil {
		t.Fatalf("EncodeDisconnect: %v", err)
	}
	got, err := DecodeDisconnect(encoded)
	if err != nil {
		t.Fatalf("DecodeDisconnect: %v", err)
	}
	if got.Reason != "client shutdown" {
		t.Fatalf("got reason %q", got.Reason)
	}
}

func TestError_RoundTrip(t *testing.T) {
	t.Parallel()
	encoded, err := EncodeError(protocol.ErrUnknownMessageType, "unrecognized type")
	if err != nil {
		t.Fatalf("EncodeError: %v", err)
	}
	got, err := DecodeError(encoded)
	if err != nil {
		t.Fatalf("DecodeError: %v", err)
	}
	if got.ErrorCode != protocol.ErrUnknownMessageType {
		t.Fatalf("got code %v", got.ErrorCode)
	}
}

func TestRekeyInitAck_RoundTrip(t *testing.T) {
	t.Parallel()
	key := bytes.Repeat([]byte{0x07}, protocol.KeySize)
	encoded, err := EncodeRekeyInit(key)
	if err != nil {
		t.Fatalf("EncodeRekeyInit: %v", err)
	}
	got, err := DecodeRekeyInit(encoded)
	if err != nil {
		t.Fatalf("DecodeRekeyInit: %v", err)
	}
	if !bytes.Equal(got.NewMasterKey, key) {
		t.Fatalf("unexpected decode: %+v", got)
	}

	ackEncoded, err := EncodeRekeyAck(true)
	if err != nil {
		t.Fatalf("EncodeRekeyAck: %v", err)
	}
	ack, err := DecodeRekeyAck(ackEncoded)
	if err != nil {
		t.Fatalf("DecodeRekeyAck: %v", err)
	}
	if !ack.Applied {
		t.Fatal("expected Applied=true")
	}
}

func TestRekeyInit_WrongKeySizeRejected(t *testing.T) {
	t.Parallel()
	encoded, _ := EncodeRekeyInit([]byte{1, 2, 3})
	if _, err := DecodeRekeyInit(encoded); err == nil {
		t.Fatal("expected error for undersized rekey key")
	}
}

func TestDecode_VersionMismatchRejected(t *testing.T) {
	t.Parallel()
	encoded, _ := EncodePing(1)
	// corrupt the encoded version by re-encoding with a bogus version via a
	// manual struct, bypassing the Encode* helpers.
	bogus := Ping{Version: "wrong-version", Timestamp: 1}
	b, err := encode(bogus)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodePing(b); err == nil {
		t.Fatal("expected version mismatch error")
	}
	_ = encoded
}
