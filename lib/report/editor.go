// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package report

import "strings"

// EditorActivity is the decoded form of a seat's last_activity_editor
// string, "editor/editor_version/plugin/plugin_version".
type EditorActivity struct {
	Editor        string
	EditorVersion string
	Plugin        string
	PluginVersion string
}

// noActivity is the decoding of an absent activity string.
var noActivity = EditorActivity{
	Editor:        Sentinel,
	EditorVersion: Sentinel,
	Plugin:        Sentinel,
	PluginVersion: Sentinel,
}

// DecodeEditor splits raw on "/" and assigns the segments by position.
// A nil or blank string yields all sentinels. Missing or empty
// segments yield Sentinel; segments past the fourth are ignored.
func DecodeEditor(raw *string) EditorActivity {
	if !hasActivity(raw) {
		return noActivity
	}

	segments := strings.SplitN(*raw, "/", 5)
	segment := func(index int) string {
		if index >= len(segments) {
			return Sentinel
		}
		value := strings.TrimSpace(segments[index])
		if value == "" {
			return Sentinel
		}
		return value
	}

	return EditorActivity{
		Editor:        segment(0),
		EditorVersion: segment(1),
		Plugin:        segment(2),
		PluginVersion: segment(3),
	}
}

func hasActivity(raw *string) bool {
	return raw != nil && strings.TrimSpace(*raw) != ""
}
