// © 2025 Platform Engineering Labs Inc.
//
// SPDX-License-Identifier: FSL-1.1-ALv2

package nativeid

import (
	"fmt"
	"strings"

	"github.com/segmentio/ksuid"
)

const prefix = "azure:v1:"

// NativeID is an encoded Azure resource identifier, stored in Handle.RemoteID.
// Format: azure:v1:{ksuid}:{armID}
//
// ARM IDs are reused when a resource is deleted and created again under the
// same name. The KSUID makes each incarnation distinguishable, so a run report
// never confuses a torn-down account with its successor.
//
// The azure adapter encodes on the way out and decodes on the way in; the
// per-kind provisioners only see raw ARM IDs.
type NativeID string

// Encode wraps a raw ARM ID with a new KSUID.
// Returns empty NativeID for empty input.
func Encode(armID string) NativeID {
	if armID == "" {
		return ""
	}
	return NativeID(fmt.Sprintf("%s%s:%s", prefix, ksuid.New().String(), armID))
}

// ReEncode keeps the instance of previous when armID is unchanged, so an
// update in place does not look like a new resource. Otherwise it encodes
// armID afresh.
func ReEncode(previous string, armID string) NativeID {
	prev := NativeID(previous)
	if prev.Instance() != "" && prev.ArmID() == armID {
		return prev
	}
	return Encode(armID)
}

// Parse validates an encoded ID.
func Parse(s string) (NativeID, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0]+":"+parts[1]+":" != prefix {
		return "", fmt.Errorf("not an encoded azure id: %q", s)
	}
	if _, err := ksuid.Parse(parts[2]); err != nil {
		return "", fmt.Errorf("invalid instance id in %q: %w", s, err)
	}
	if !strings.HasPrefix(parts[3], "/") {
		return "", fmt.Errorf("invalid ARM id in %q", s)
	}
	return NativeID(s), nil
}

// ArmID extracts the raw Azure ARM ID.
// Returns the original string if not encoded.
func (n NativeID) ArmID() string {
	s := string(n)
	if strings.HasPrefix(s, prefix) {
		if parts := strings.SplitN(s, ":", 4); len(parts) == 4 {
			return parts[3]
		}
	}
	return s
}

// Instance returns the KSUID part, or "" when the ID is not encoded.
func (n NativeID) Instance() string {
	s := string(n)
	if strings.HasPrefix(s, prefix) {
		if parts := strings.SplitN(s, ":", 4); len(parts) == 4 {
			return parts[2]
		}
	}
	return ""
}

// String returns the encoded NativeID string.
func (n NativeID) String() string {
	return string(n)
}
