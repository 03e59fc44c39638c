package cli

import "github.com/charmbracelet/lipgloss"

// Shared colors.
var (
	AccentColor = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	DimColor    = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}
	WarnColor   = lipgloss.AdaptiveColor{Light: "#F25D94", Dark: "#F25D94"}
	GreenColor  = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
)

// Shared styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(AccentColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(DimColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(WarnColor).
			Bold(true)

	OKStyle = lipgloss.NewStyle().
			Foreground(GreenColor)
)

// Title renders s as a heading when styled is set.
func Title(s string, styled bool) string {
	if !styled {
		return s
	}
	return TitleStyle.Render(s)
}

// Subtitle renders dim secondary text when styled is set.
func Subtitle(s string, styled bool) string {
	if !styled {
		return s
	}
	return SubtitleStyle.Render(s)
}

// Status renders a pass or fail marker.
func Status(ok bool, styled bool) string {
	switch {
	case ok && styled:
		return OKStyle.Render("ok")
	case ok:
		return "ok"
	case styled:
		return ErrorStyle.Render("FAIL")
	default:
		return "FAIL"
	}
}

// Alert renders s in the error style when styled is set.
func Alert(s string, styled bool) string {
	if !styled {
		return s
	}
	return ErrorStyle.Render(s)
}
