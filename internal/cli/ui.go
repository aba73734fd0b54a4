package cli

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/AdenKoperczak/grib2pf/pkg/palette"
	"github.com/AdenKoperczak/grib2pf/pkg/pipeline"
)

// stdout receives command output. Logs and spinners go to stderr.
var stdout io.Writer = os.Stdout

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorBlue   = lipgloss.Color("75")
	colorWhite  = lipgloss.Color("255")
	colorGray   = lipgloss.Color("245")
	colorDim    = lipgloss.Color("240")
)

var (
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	StyleDim   = lipgloss.NewStyle().Foreground(colorDim)
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	styleSpinner = lipgloss.NewStyle().Foreground(colorCyan)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleCached  = lipgloss.NewStyle().Foreground(colorGreen)
	styleFresh   = lipgloss.NewStyle().Foreground(colorGray)
)

const (
	iconArrow  = "→"
	iconSwatch = "██"
)

// status is the leading mark of a one-line message.
type status struct {
	icon  string
	style lipgloss.Style
	body  lipgloss.Style
}

var (
	statusSuccess = status{"✓", lipgloss.NewStyle().Foreground(colorGreen), lipgloss.NewStyle()}
	statusError   = status{"✗", lipgloss.NewStyle().Foreground(colorRed), lipgloss.NewStyle()}
	statusWarning = status{"!", lipgloss.NewStyle().Foreground(colorYellow), lipgloss.NewStyle().Foreground(colorYellow)}
	statusInfo    = status{"›", lipgloss.NewStyle().Foreground(colorGray), lipgloss.NewStyle()}
)

func (s status) print(format string, args ...any) {
	fmt.Fprintln(stdout, s.style.Render(s.icon)+" "+s.body.Render(fmt.Sprintf(format, args...)))
}

func printSuccess(format string, args ...any) { statusSuccess.print(format, args...) }
func printError(format string, args ...any)   { statusError.print(format, args...) }
func printWarning(format string, args ...any) { statusWarning.print(format, args...) }
func printInfo(format string, args ...any)    { statusInfo.print(format, args...) }

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a written file.
func printFile(path string) {
	fmt.Fprintln(stdout, "  "+StyleDim.Render(iconArrow)+" "+StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Fprintln(stdout, styleKey.Render(key)+" "+StyleValue.Render(value))
}

func printNewline() { fmt.Fprintln(stdout) }

// printNextStep points at what to do with the result, such as a URL to
// add to Supercell-Wx.
func printNextStep(description, target string) {
	fmt.Fprintln(stdout, StyleDim.Render(description+":")+" "+styleCommand.Render(target))
}

// printResult prints every output of a run followed by its statistics.
func printResult(result *pipeline.Result, placeFile string) {
	for i, out := range result.Outputs {
		if out.Err != nil {
			printError("output %d: %v", i, out.Err)
			continue
		}
		for _, f := range out.Files {
			printFile(f)
		}
	}
	if placeFile != "" {
		printFile(placeFile)
	}
	printStats(result)
}

// printStats prints run statistics on a single line.
func printStats(result *pipeline.Result) {
	st := result.Stats
	parts := []string{
		formatBytes(st.PayloadBytes),
		fmt.Sprintf("%d outputs", len(result.Outputs)),
	}
	if st.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", st.Failed))
	}
	parts = append(parts, fmt.Sprintf("fetch %s", st.FetchTime.Round(time.Millisecond)))
	parts = append(parts, fmt.Sprintf("render %s", st.RenderTime.Round(time.Millisecond)))

	origin := styleFresh.Render("fresh")
	if st.PayloadCache {
		origin = styleCached.Render("cached")
	}
	sep := StyleDim.Render(" · ")
	fmt.Fprintln(stdout, "  "+StyleDim.Render(strings.Join(parts, " · "))+sep+origin)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// swatch renders c as a colored block. Fully transparent colors render
// as blank space.
func swatch(c color.NRGBA) string {
	if c.A == 0 {
		return strings.Repeat(" ", len([]rune(iconSwatch)))
	}
	hex := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render(iconSwatch)
}

// printPalette prints one line per breakpoint with its colors.
func printPalette(t *palette.Table) {
	if t.Product != "" {
		printKeyValue("Product", t.Product)
	}
	if t.Units != "" {
		printKeyValue("Units", t.Units)
	}
	if t.Scale != 1 || t.Offset != 0 {
		printKeyValue("Transform", fmt.Sprintf("v*%g + %g", t.Scale, t.Offset))
	}
	for _, e := range t.Entries {
		line := fmt.Sprintf("%8g  %s", e.Value, swatch(e.Primary))
		if e.HasSecondary {
			line += " " + StyleDim.Render(iconArrow) + " " + swatch(e.Secondary)
		}
		fmt.Fprintln(stdout, line)
	}
}
