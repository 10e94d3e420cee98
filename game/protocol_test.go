package game

import (
	"errors"
	"testing"
)

func TestParseEnvelope(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"op":"joinRoom","data":{"roomCode":"ROOM01"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope failed: %v", err)
	}
	if env.Op != OpJoin {
		t.Errorf("unexpected op: %s", env.Op)
	}
	if len(env.Data) == 0 {
		t.Errorf("data should be preserved")
	}
}

func TestParseEnvelope_Invalid(t *testing.T) {
	cases := [][]byte{
		[]byte("not json"),
		[]byte(`{}`),
		[]byte(`{"data":{}}`),
	}
	for _, c := range cases {
		if _, err := ParseEnvelope(c); !errors.Is(err, ErrInvalidEnvelope) {
			t.Errorf("ParseEnvelope(%s): expected ErrInvalidEnvelope, got %v", c, err)
		}
	}
}
