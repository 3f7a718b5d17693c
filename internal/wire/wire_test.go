package wire

import (
	"strings"
	"testing"
	"time"
)

func mustDecode(t *testing.T, b []byte) Marker {
	t.Helper()
	m, err := DecodeMarker(b)
	if err != nil {
		t.Fatalf("DecodeMarker error: %v", err)
	}
	return m
}

func TestMarkerRT(t *testing.T) {
	now := time.Unix(0, time.Now().UnixNano())
	cases := []Marker{
		{},
		{Token: "3f1c", PID: 4242, Host: "build-7", Acquired: now},
		{Token: strings.Repeat("t", 300), PID: 1, Host: "", Acquired: now},
	}
	for _, tc := range cases {
		got := mustDecode(t, EncodeMarker(tc))
		if got.Token != tc.Token || got.PID != tc.PID || got.Host != tc.Host {
			t.Fatalf("marker mismatch: got %+v want %+v", got, tc)
		}
		if !tc.Acquired.IsZero() && !got.Acquired.Equal(tc.Acquired) {
			t.Fatalf("acquired mismatch: got %v want %v", got.Acquired, tc.Acquired)
		}
	}
}

func TestMarkerRejectsTrailingBytes(t *testing.T) {
	enc := EncodeMarker(Marker{Token: "x", PID: 7})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeMarker(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestMarkerCorruptHeaders(t *testing.T) {
	enc := EncodeMarker(Marker{Token: "abc", PID: 1, Host: "h"})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeMarker(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeMarker(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindLock + 1
	if _, err := DecodeMarker(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}
}

func TestMarkerTruncated(t *testing.T) {
	enc := EncodeMarker(Marker{Token: "token-value", PID: 9, Host: "host"})
	for n := 0; n < len(enc); n++ {
		if _, err := DecodeMarker(enc[:n]); err != ErrCorrupt {
			t.Fatalf("prefix %d: expected ErrCorrupt, got %v", n, err)
		}
	}
}

func TestMarkerEmptyFileIsCorrupt(t *testing.T) {
	// O_EXCL creates the file before the payload is written; a reader can
	// observe that window.
	if _, err := DecodeMarker(nil); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
