package ui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme holds widget colors and the matching color tags for text markup.
type Theme struct {
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color

	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableZebra1   tcell.Color
	TableZebra2   tcell.Color

	// Temperature colors, coldest first.
	TempCold  tcell.Color
	TempWarm  tcell.Color
	TempHot   tcell.Color
	TempSuper tcell.Color

	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

func themeDark() Theme {
	return Theme{
		Bg:          hex("#0e1116"),
		Surface:     hex("#12161e"),
		Border:      hex("#2b3240"),
		FocusBorder: hex("#4aa8ff"),
		SelectionBg: hex("#2b3240"),
		SelectionFg: hex("#cfd8e3"),
		TextPrimary: hex("#e6edf3"),
		TextMuted:   hex("#8a939f"),

		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableZebra1:   hex("#161c27"),
		TableZebra2:   hex("#121823"),

		TempCold:  hex("#87afff"),
		TempWarm:  hex("#ffd75f"),
		TempHot:   hex("#ffaf5f"),
		TempSuper: hex("#ff5f5f"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",
	}
}

func themeLight() Theme {
	return Theme{
		Bg:          hex("#f8fafc"),
		Surface:     hex("#ffffff"),
		Border:      hex("#cbd5e1"),
		FocusBorder: hex("#2563eb"),
		SelectionBg: hex("#dbeafe"),
		SelectionFg: hex("#0f172a"),
		TextPrimary: hex("#0f172a"),
		TextMuted:   hex("#64748b"),

		TableHeader:   hex("#1e3a8a"),
		TableHeaderBg: hex("#e2e8f0"),
		TableZebra1:   hex("#ffffff"),
		TableZebra2:   hex("#f1f5f9"),

		TempCold:  hex("#1d4ed8"),
		TempWarm:  hex("#a16207"),
		TempHot:   hex("#c2410c"),
		TempSuper: hex("#b91c1c"),

		TagTextPrimary: "#0f172a",
		TagMuted:       "#64748b",
		TagAccent:      "#0d9488",
		TagSuccess:     "#15803d",
		TagWarning:     "#b45309",
		TagError:       "#b91c1c",
	}
}

// themeByName falls back to dark for unknown names.
func themeByName(name string) (string, Theme) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "light":
		return "light", themeLight()
	}
	return "dark", themeDark()
}

// temperatureColor maps a temperature code to its widget color.
func (t Theme) temperatureColor(code int) tcell.Color {
	switch code {
	case 1:
		return t.TempCold
	case 2:
		return t.TempWarm
	case 3:
		return t.TempHot
	case 4:
		return t.TempSuper
	}
	return t.TextMuted
}
