package studio

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthResponse(t *testing.T) {
	// Derivation is base64(sha256(base64(sha256(password+salt)) + challenge));
	// the same inputs must always produce the same answer, and any input
	// change must produce a different one.
	a := authResponse("hunter2", "salty", "challenge-bytes")
	b := authResponse("hunter2", "salty", "challenge-bytes")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, authResponse("hunter3", "salty", "challenge-bytes"))
	assert.NotEqual(t, a, authResponse("hunter2", "other", "challenge-bytes"))
	assert.NotEqual(t, a, authResponse("hunter2", "salty", "other"))

	// Answers are valid base64 of a 32-byte digest.
	raw, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	assert.Len(t, raw, 32)
}

func TestDecodeDataURI(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 6))
	img.SetGray(3, 2, color.Gray{Y: 200})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	decoded, err := decodeDataURI(uri)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), decoded.Bounds())

	r, _, _, _ := decoded.At(3, 2).RGBA()
	assert.Equal(t, uint32(200), r>>8)
}

func TestDecodeDataURIRejectsGarbage(t *testing.T) {
	_, err := decodeDataURI("no marker here")
	assert.Error(t, err)

	_, err = decodeDataURI("data:image/png;base64,!!!not-base64!!!")
	assert.Error(t, err)
}
