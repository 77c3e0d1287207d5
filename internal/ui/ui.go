package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

const LinkColor = "#87CEEB"

// ANSI palette indexes.
const (
	red    = "1"
	green  = "2"
	yellow = "3"
	blue   = "4"
)

type UI struct {
	Out          io.Writer
	Err          io.Writer
	Output       *termenv.Output
	ErrOutput    *termenv.Output
	ColorEnabled bool
}

func New(out io.Writer, err io.Writer, mode ColorMode, disableColor bool) *UI {
	output := termenv.NewOutput(out)
	errOutput := termenv.NewOutput(err)

	return &UI{
		Out:          out,
		Err:          err,
		Output:       output,
		ErrOutput:    errOutput,
		ColorEnabled: shouldEnableColor(output, mode, disableColor),
	}
}

func shouldEnableColor(output *termenv.Output, mode ColorMode, disableColor bool) bool {
	if disableColor {
		return false
	}

	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}

	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return output.ColorProfile() != termenv.Ascii
	}
}

type style struct {
	color string
	bold  bool
}

func (u *UI) print(w io.Writer, output *termenv.Output, s style, format string, args ...any) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	if u.ColorEnabled {
		styled := output.String(msg).Foreground(output.Color(s.color))
		if s.bold {
			styled = styled.Bold()
		}
		msg = styled.String()
	}
	fmt.Fprintln(w, msg)
}

func (u *UI) Errorf(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, style{color: red}, format, args...)
}

func (u *UI) Warnf(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, style{color: yellow}, format, args...)
}

func (u *UI) Infof(format string, args ...any) {
	u.print(u.Out, u.Output, style{color: blue}, format, args...)
}

func (u *UI) Successf(format string, args ...any) {
	u.print(u.Out, u.Output, style{color: green}, format, args...)
}

// Noticef prints a bold line to stderr for values the operator must act on,
// such as freshly issued tokens.
func (u *UI) Noticef(format string, args ...any) {
	u.print(u.Err, u.ErrOutput, style{color: yellow, bold: true}, format, args...)
}

func ColorizeLink(output *termenv.Output, enabled bool, text string) string {
	if !enabled || output == nil {
		return text
	}
	return output.String(text).Foreground(output.Color(LinkColor)).String()
}

// ColorizeScore renders a grade: green at or above threshold, yellow within
// two points below it, red otherwise. A nil score renders as "-".
func ColorizeScore(output *termenv.Output, enabled bool, score *int, threshold float64) string {
	if score == nil {
		return "-"
	}
	text := strconv.Itoa(*score)
	if !enabled || output == nil {
		return text
	}
	color := red
	switch v := float64(*score); {
	case v >= threshold:
		color = green
	case v >= threshold-2:
		color = yellow
	}
	return output.String(text).Foreground(output.Color(color)).String()
}

func (u *UI) LinkText(text string) string {
	return ColorizeLink(u.Output, u.ColorEnabled, text)
}

func NormalizeColorMode(value string) ColorMode {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case string(ColorAlways):
		return ColorAlways
	case string(ColorNever):
		return ColorNever
	default:
		return ColorAuto
	}
}
