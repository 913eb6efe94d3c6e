// FilePath: internal/models/models.job_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobPayloadRoundtrip(t *testing.T) {
	payload := &JobPayload{
		Action:     ActionS3,
		Model:      AssetImage,
		ID:         42,
		AssetType:  AssetImage,
		RemoteFile: "allsky/latest.jpg",
		Metadata:   JSONMap{"night": true},
	}

	data, err := payload.Encode()
	require.NoError(t, err)

	decoded, err := DecodeJobPayload(data)
	require.NoError(t, err)
	assert.Equal(t, ActionS3, decoded.Action)
	assert.Equal(t, int64(42), decoded.ID)
	assert.Equal(t, "allsky/latest.jpg", decoded.RemoteFile)
	assert.Equal(t, true, decoded.Metadata["night"])
}

func TestDecodeJobPayloadRejectsUnknownAction(t *testing.T) {
	_, err := DecodeJobPayload([]byte(`{"action":"teleport"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "teleport")
}

func TestDecodeJobPayloadRejectsMalformedJSON(t *testing.T) {
	_, err := DecodeJobPayload([]byte(`{`))
	assert.Error(t, err)
}

func TestAssetTypeClassPredicates(t *testing.T) {
	assert.True(t, AssetImage.ImageLike())
	assert.True(t, AssetPanoramaImage.ImageLike())
	assert.False(t, AssetVideo.ImageLike())

	assert.True(t, AssetKeogram.Valid())
	assert.False(t, AssetType("cubemap").Valid())
}
