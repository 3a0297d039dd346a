package controllers

import (
	"bytes"
	"image/png"
	"testing"

	"equipment_usage_tracker/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagPayload(t *testing.T) {
	code := "TAG-9"
	empty := ""
	assert.Equal(t, "TAG-9", TagPayload(&models.Equipment{ID: "id-1", ScanCode: &code}))
	assert.Equal(t, "id-1", TagPayload(&models.Equipment{ID: "id-1", ScanCode: &empty}))
	assert.Equal(t, "id-1", TagPayload(&models.Equipment{ID: "id-1"}))
}

func TestTagPNG_Size(t *testing.T) {
	it := &models.Equipment{ID: "8f7d1c8e-4a52-4f0e-9a51-1f7b1b0e2d33"}
	cases := map[int]int{0: qrImageSize, 300: 300, 5000: qrImageMaxSize}
	for in, want := range cases {
		data, err := TagPNG(it, in)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, want, img.Bounds().Dx(), "size %d", in)
	}
}
