package bootstrap

import (
	"fmt"
	"os"
	"strings"
)

const bannerHeight = 6

// bannerFont covers the letters of the product name. Names using other
// characters render through the plain frame instead.
var bannerFont = map[rune][]string{
	'A': {
		"  ___  ",
		" / _ \\ ",
		"/ /_\\ \\",
		"|  _  |",
		"| | | |",
		"\\_| |_/",
	},
	'C': {
		" _____ ",
		"/  __ \\",
		"| /  \\/",
		"| |    ",
		"| \\__/\\",
		" \\____/",
	},
	'E': {
		" _____ ",
		"|  ___|",
		"| |__  ",
		"|  __| ",
		"| |___ ",
		"\\____/ ",
	},
	'I': {
		" _ ",
		"| |",
		"| |",
		"| |",
		"| |",
		"|_|",
	},
	'L': {
		" _     ",
		"| |    ",
		"| |    ",
		"| |    ",
		"| |____",
		"\\_____/",
	},
	'N': {
		" _   _ ",
		"| \\ | |",
		"|  \\| |",
		"| . ` |",
		"| |\\  |",
		"\\_| \\_/",
	},
	'O': {
		" _____ ",
		"|  _  |",
		"| | | |",
		"| | | |",
		"\\ \\_/ /",
		" \\___/ ",
	},
	'Q': {
		" _____ ",
		"|  _  |",
		"| | | |",
		"| | | |",
		"\\ \\/' /",
		" \\_/\\_\\",
	},
	'V': {
		"__      __",
		"\\ \\    / /",
		" \\ \\  / / ",
		"  \\ \\/ /  ",
		"   \\  /   ",
		"    \\/    ",
	},
	' ': {
		"   ",
		"   ",
		"   ",
		"   ",
		"   ",
		"   ",
	},
}

// GenerateBanner renders the text as ASCII art and saves it to file.
func GenerateBanner(text, filename string) error {
	return os.WriteFile(filename, []byte(renderBanner(text)), 0644)
}

func renderBanner(text string) string {
	text = strings.ToUpper(text)
	for _, r := range text {
		if _, ok := bannerFont[r]; !ok {
			return frameBanner(text)
		}
	}

	lines := make([]string, bannerHeight)
	for _, r := range text {
		glyph := bannerFont[r]
		for i := 0; i < bannerHeight; i++ {
			lines[i] += glyph[i]
		}
	}
	return strings.Join(lines, "\n")
}

// frameBanner keeps arbitrary server names readable without a full font.
func frameBanner(text string) string {
	bar := strings.Repeat("=", len(text)+4)
	return fmt.Sprintf("%s\n  %s\n%s", bar, text, bar)
}

// EnsureBannerFile ensures banner.txt exists, generates it if it doesn't
func EnsureBannerFile(filename, defaultText string) error {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		if defaultText == "" {
			defaultText = "CliniqAI"
		}
		return GenerateBanner(defaultText, filename)
	}
	return nil
}
