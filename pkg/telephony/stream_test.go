package telephony

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamBridgeStartFrame(t *testing.T) {
	bridge := NewStreamBridge("dg-key", nil)

	err := bridge.HandleTwilioMessage([]byte(`{"event":"start","start":{"callSid":"CA700"}}`))
	require.NoError(t, err)
	assert.Equal(t, "CA700", bridge.CallSid())
}

func TestStreamBridgeIgnoresMalformedFrames(t *testing.T) {
	bridge := NewStreamBridge("dg-key", nil)

	assert.NoError(t, bridge.HandleTwilioMessage([]byte(`not json at all`)))
	assert.NoError(t, bridge.HandleTwilioMessage([]byte(`{"event":"connected"}`)))
	assert.Equal(t, "", bridge.CallSid())
	assert.Equal(t, 0, bridge.Frames())
}

func TestStreamBridgeMediaWithoutUpstream(t *testing.T) {
	bridge := NewStreamBridge("dg-key", nil)
	payload := base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe, 0xfd})

	// no upstream socket yet: the frame is counted but not forwarded
	err := bridge.HandleTwilioMessage([]byte(`{"event":"media","media":{"payload":"` + payload + `"}}`))
	require.NoError(t, err)
	assert.Equal(t, 1, bridge.Frames())
}

func TestStreamBridgeMediaBadBase64(t *testing.T) {
	bridge := NewStreamBridge("dg-key", nil)

	err := bridge.HandleTwilioMessage([]byte(`{"event":"media","media":{"payload":"!!!"}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, bridge.Frames())
}

func TestStreamBridgeStopCloses(t *testing.T) {
	bridge := NewStreamBridge("dg-key", nil)
	require.NoError(t, bridge.HandleTwilioMessage([]byte(`{"event":"start","start":{"callSid":"CA701"}}`)))
	require.NoError(t, bridge.HandleTwilioMessage([]byte(`{"event":"stop"}`)))

	// closing twice is safe
	bridge.Close()
}
