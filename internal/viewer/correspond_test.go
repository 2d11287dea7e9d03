package viewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchLabels(t *testing.T) {
	markers := []string{"elbow", "wrist", "shoulder"}
	labels := []string{"Subject:WRIST", "noise", "Elbow "}

	mapped := matchLabels(markers, labels)
	assert.Equal(t, []int{2, 0, -1}, mapped)
}

func TestMatchLabelsNothingMatches(t *testing.T) {
	assert.Nil(t, matchLabels([]string{"elbow"}, []string{"A", "B"}))
}

func TestMatchLabelsDuplicateKeepsFirst(t *testing.T) {
	mapped := matchLabels([]string{"elbow"}, []string{"ELBOW", "Subject:elbow"})
	assert.Equal(t, []int{0}, mapped)
}

func TestMatchLabelsEmptyCapture(t *testing.T) {
	assert.Nil(t, matchLabels([]string{"elbow"}, nil))
}
