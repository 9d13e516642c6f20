// ABOUTME: Tests for the result list scroll offset
// ABOUTME: Verifies cursor-to-middle vim-style scrolling behavior

package tui

import "testing"

func TestScrollOffset(t *testing.T) {
	tests := []struct {
		name   string
		height int
		cursor int
		total  int
		want   int
	}{
		{"empty list", 10, 0, 0, 0},
		{"zero height", 0, 5, 50, 0},
		{"cursor at top", 10, 0, 50, 0},
		{"just before middle", 10, 4, 50, 0},
		{"at middle", 10, 5, 50, 0},
		{"past middle scrolls", 10, 6, 50, 1},
		{"deep in the list", 10, 30, 50, 25},
		{"last scrolling line", 10, 44, 50, 39},
		{"bottom phase", 10, 45, 50, 40},
		{"last track", 10, 49, 50, 40},
		{"list shorter than viewport", 10, 7, 8, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scrollOffset(tt.height, tt.cursor, tt.total); got != tt.want {
				t.Errorf("scrollOffset(%d, %d, %d) = %d, want %d", tt.height, tt.cursor, tt.total, got, tt.want)
			}
		})
	}
}
