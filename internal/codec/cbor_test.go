// SPDX-License-Identifier: MPL-2.0

package codec

import (
	"bytes"
	"testing"

	"xtcmod/pkg/version"
)

type sample struct {
	Name     string            `cbor:"name"`
	Version  version.Version   `cbor:"version"`
	Labels   map[string]string `cbor:"labels,omitempty"`
	Position int               `cbor:"position"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	t.Parallel()

	original := sample{Name: "json.xtclang.org", Version: version.MustParse("1.2-rc1"), Position: 3}
	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded sample
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Name != original.Name || !decoded.Version.Equal(original.Version) || decoded.Position != original.Position {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	t.Parallel()

	a := sample{Name: "x", Labels: map[string]string{"b": "2", "a": "1", "c": "3"}}
	b := sample{Name: "x", Labels: map[string]string{"c": "3", "a": "1", "b": "2"}}

	first, err := Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("equal documents encoded to different bytes")
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	t.Parallel()

	data, err := Marshal(map[string]any{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}
	var out any
	if err := Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if _, ok := out.(map[string]any); !ok {
		t.Errorf("decoded %T, want map[string]any", out)
	}
}
