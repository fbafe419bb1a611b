package identifier

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

func TestExtractDistrictKey(t *testing.T) {
	tests := []struct {
		name      string
		composite string
		want      model.DistrictKey
		ok        bool
	}{
		{"demographic id", "010000201705", model.DistrictKey{State: "01", Code: "00002"}, true},
		{"exact width", "0100002", model.DistrictKey{State: "01", Code: "00002"}, true},
		{"header row", "State FIPS Code", model.DistrictKey{}, false},
		{"footer row", "Total", model.DistrictKey{}, false},
		{"too short", "010000", model.DistrictKey{}, false},
		{"space in code", "01 0002 17", model.DistrictKey{}, false},
		{"letter in code", "0100A0201705", model.DistrictKey{}, false},
		{"non numeric state", "XX12345", model.DistrictKey{State: "", Code: "12345"}, true},
		{"empty", "", model.DistrictKey{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDistrictKey(tt.composite)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// The extractor returns a key iff the [2,7) substring is exactly five digits.
func TestExtractDistrictKey_IffFiveDigits(t *testing.T) {
	alphabet := []byte("0123456789 -Ax")
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 3000; i++ {
		n := rng.Intn(14)
		b := make([]byte, n)
		for j := range b {
			b[j] = alphabet[rng.Intn(len(alphabet))]
		}
		s := string(b)

		want := len(s) >= 7 && isDigits(s[2:7])
		key, ok := ExtractDistrictKey(s)
		require.Equal(t, want, ok, "composite=%q", s)
		if ok {
			assert.Equal(t, s[2:7], key.Code)
		}
	}
}

func TestLEADistrictKey(t *testing.T) {
	key, ok := LEADistrictKey("0100002")
	require.True(t, ok)
	assert.Equal(t, "00002", key.Code)

	// Unpadded geocode-style ids land on the same code once padded back
	key, ok = LEADistrictKey("100002")
	require.True(t, ok)
	assert.Equal(t, model.DistrictKey{State: "01", Code: "00002"}, key)

	_, ok = LEADistrictKey("")
	assert.False(t, ok)
}

func TestPadLEAID(t *testing.T) {
	assert.Equal(t, "0100002", PadLEAID("100002"))
	assert.Equal(t, "0100002", PadLEAID(" 0100002"))
	assert.Equal(t, "12345678", PadLEAID("12345678"))
	assert.Equal(t, "", PadLEAID(""))
}

func TestKeyScope(t *testing.T) {
	k := model.DistrictKey{State: "06", Code: "00001"}
	assert.Equal(t, "00001", ScopeDistrict.JoinKey(k))
	assert.Equal(t, "0600001", ScopeStateDistrict.JoinKey(k))

	for _, name := range []string{"", "district", "state_district", "State-District"} {
		_, ok := ParseKeyScope(name)
		assert.True(t, ok, name)
	}
	_, ok := ParseKeyScope("county")
	assert.False(t, ok)
	assert.Equal(t, "state_district", fmt.Sprint(ScopeStateDistrict))
}
