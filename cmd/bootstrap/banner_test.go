package bootstrap

import (
	"strings"
	"testing"
)

func TestRenderBannerKnownLetters(t *testing.T) {
	banner := renderBanner("CliniqAI Voice")
	lines := strings.Split(banner, "\n")
	if len(lines) != bannerHeight {
		t.Fatalf("banner has %d lines, want %d", len(lines), bannerHeight)
	}
	for i := 1; i < len(lines); i++ {
		if len(lines[i]) != len(lines[0]) {
			t.Errorf("line %d width %d, want %d", i, len(lines[i]), len(lines[0]))
		}
	}
}

func TestRenderBannerFallsBackToFrame(t *testing.T) {
	banner := renderBanner("Zephyr-9")
	if !strings.Contains(banner, "ZEPHYR-9") {
		t.Errorf("frame fallback should carry the name:\n%s", banner)
	}
	if !strings.Contains(banner, "====") {
		t.Errorf("frame fallback should draw the frame:\n%s", banner)
	}
}
