// ABOUTME: Cursor-to-middle scroll offset for the result list
// ABOUTME: Implements vim/less style scrolling behavior

package tui

// scrollOffset returns the first visible line so the cursor stays in view.
// The cursor moves freely in the top half, then stays centred while the
// content scrolls, and finally moves down once the end is visible.
func scrollOffset(height, cursor, total int) int {
	if total == 0 || height < 1 {
		return 0
	}

	middle := height / 2

	if cursor < middle {
		return 0
	}

	if cursor < total-height+middle {
		return cursor - middle
	}

	return max(total-height, 0)
}
