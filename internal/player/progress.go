/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"fmt"
	"strings"

	"github.com/friendsincode/bragi_player/internal/models"
	"github.com/friendsincode/bragi_player/internal/timefmt"
)

const progressBarLen = 10

// RenderProgress renders the textual progress bar for the control message.
// An unknown total (zero) yields the placeholder indicator.
func RenderProgress(elapsed, total int) string {
	if total <= 0 {
		return "--:-- " + strings.Repeat("━", progressBarLen+2) + " --:--"
	}

	ratio := float64(elapsed) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	filled := int(progressBarLen * ratio)

	var bar string
	switch {
	case filled <= 0:
		bar = "●" + strings.Repeat("━", progressBarLen-1)
	case filled >= progressBarLen:
		bar = strings.Repeat("━", progressBarLen-1) + "●"
	default:
		bar = strings.Repeat("━", filled) + "●" + strings.Repeat("━", progressBarLen-filled-1)
	}

	return fmt.Sprintf("%s %s %s", timefmt.FormatSeconds(elapsed), bar, timefmt.FormatSeconds(total))
}

// BuildControls assembles the now-playing controls for an active chat.
func BuildControls(elapsed, total int, chatID models.ChatID) Controls {
	return Controls{
		ProgressText: RenderProgress(elapsed, total),
		Rows: [][]Button{
			{
				{Label: "Pause", Action: fmt.Sprintf("pause:%d", chatID)},
				{Label: "Resume", Action: fmt.Sprintf("resume:%d", chatID)},
				{Label: "Skip", Action: fmt.Sprintf("skip:%d", chatID)},
			},
			{
				{Label: "Stop", Action: fmt.Sprintf("stop:%d", chatID)},
			},
		},
	}
}

func buildCaption(item models.PlaybackItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Now playing: %s\n", item.Title)
	fmt.Fprintf(&b, "Requested by: %s\n", item.Requester)
	fmt.Fprintf(&b, "Type: %s", strings.ToUpper(string(item.Kind)))
	return b.String()
}
