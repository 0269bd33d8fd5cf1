// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package nativeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const armID = "/subscriptions/sub/resourceGroups/rgRSMR/providers/Microsoft.Storage/storageAccounts/rn1"

func TestEncode(t *testing.T) {
	first := Encode(armID)
	second := Encode(armID)

	assert.NotEqual(t, first, second, "each encoding is a new instance")
	assert.Equal(t, armID, first.ArmID())
	assert.Equal(t, armID, second.ArmID())
	assert.Len(t, first.Instance(), 27)
	assert.Empty(t, Encode(""))
}

func TestArmID_Unencoded(t *testing.T) {
	assert.Equal(t, armID, NativeID(armID).ArmID())
	assert.Empty(t, NativeID(armID).Instance())
}

func TestParse(t *testing.T) {
	encoded := Encode(armID)
	parsed, err := Parse(encoded.String())
	require.NoError(t, err)
	assert.Equal(t, encoded, parsed)

	for _, bad := range []string{
		armID,
		"azure:v1:notaksuid:" + armID,
		"azure:v2:" + encoded.Instance() + ":" + armID,
		"azure:v1:" + encoded.Instance() + ":rn1",
	} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestReEncode(t *testing.T) {
	first := Encode(armID)

	assert.Equal(t, first, ReEncode(first.String(), armID), "same ARM id keeps the instance")

	moved := ReEncode(first.String(), armID+"-2")
	assert.Equal(t, armID+"-2", moved.ArmID())
	assert.NotEqual(t, first.Instance(), moved.Instance())

	fresh := ReEncode("", armID)
	assert.Equal(t, armID, fresh.ArmID())
	assert.NotEmpty(t, fresh.Instance())

	assert.NotEmpty(t, ReEncode(armID, armID).Instance(), "unencoded previous id is encoded")
}
