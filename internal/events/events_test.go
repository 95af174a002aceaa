package events

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsFreshUTCTimestamp(t *testing.T) {
	e := New(KindPing, nil, "")
	assert.Equal(t, "UTC", e.Timestamp.Location().String())
	assert.NotEmpty(t, e.CorrelationID)
	assert.NotNil(t, e.Payload)
}

func TestRoundTripKnownKinds(t *testing.T) {
	cases := []Event{
		NewDialogueStart("sess-1", "corr-1"),
		NewDialogueTurn("hello", "reflect", true, "corr-2"),
		NewDialogueEnd("user ended", "corr-3"),
		NewModeChange("challenge", "corr-4"),
		NewInterceptRequest("delete prod", "cleanup", "high", "corr-5"),
		NewInterceptResult(false, "escalate", 0.0, "corr-6"),
		NewEigenvectorProbe("corr-7"),
		NewStateSnapshot("corr-8"),
		NewPing("corr-9"),
		NewError(KindDialogueTurn, "boom", "corr-10"),
		NewPulse(5, 120, "explore", true),
		NewAmbient(KindThought, Payload{"text": "hmm"}, "corr-11"),
		NewPerturbation(0.9, Payload{"signal": "x"}, "corr-12"),
		NewDreamStart("corr-13"),
		NewDreamPattern("recurring theme", "corr-14"),
		NewDreamInsight("insight text", "corr-15"),
		NewDreamEnd("corr-16"),
	}

	for _, want := range cases {
		data, err := Serialize(want)
		require.NoError(t, err)

		got, err := Parse(data)
		require.NoError(t, err)

		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("round trip mismatch for kind %s (-want +got):\n%s", want.Kind, diff)
		}
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	_, err := Parse([]byte(`{"kind":"not_a_real_kind","timestamp":"2024-01-01T00:00:00Z","payload":{}}`))
	assert.Error(t, err)
}

func TestNewAmbientPanicsOnNonAmbientKind(t *testing.T) {
	assert.Panics(t, func() {
		NewAmbient(KindPing, nil, "")
	})
}

func TestWithStateAndCorrelation(t *testing.T) {
	e := NewPing("orig")
	snap := Payload{"mode": "reflect"}
	e2 := e.WithState(snap).WithCorrelation("new-id")

	assert.Equal(t, snap, e2.StateSnapshot)
	assert.Equal(t, "new-id", e2.CorrelationID)
	// original unaffected (value semantics)
	assert.Nil(t, e.StateSnapshot)
	assert.Equal(t, "orig", e.CorrelationID)
}
