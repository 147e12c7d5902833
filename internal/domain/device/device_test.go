package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFacing(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  Facing
	}{
		{name: "back camera", label: "Back Camera", want: FacingBack},
		{name: "rear camera", label: "Integrated Rear Camera", want: FacingBack},
		{name: "android environment label", label: "camera2 0, facing environment", want: FacingBack},
		{name: "front camera", label: "Front Camera", want: FacingFront},
		{name: "user facing", label: "camera2 1, facing user", want: FacingFront},
		{name: "facetime camera", label: "FaceTime HD Camera", want: FacingFront},
		{name: "generic webcam", label: "USB 2.0 Webcam", want: FacingUnknown},
		{name: "empty label", label: "", want: FacingUnknown},
		{name: "back beats front when both present", label: "back, then user", want: FacingBack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFacing(tt.label))
		})
	}
}

func TestFacing_String(t *testing.T) {
	assert.Equal(t, "back", FacingBack.String())
	assert.Equal(t, "front", FacingFront.String())
	assert.Equal(t, "unknown", FacingUnknown.String())
}
