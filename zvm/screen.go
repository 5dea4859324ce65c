// Screen model: the split upper/lower window state the dispatcher reports
// to its I/O collaborator after every opcode that touches the display.
//
// Grounded on zmachine.ScreenModel/Color/Font/TextStyle in the teacher
// repository, carried over almost unchanged -- this is ambient UI state,
// not part of the core spec, and the teacher's shape already fits a
// non-V6 screen model.
package zvm

import "fmt"

// TextStyle is the set_text_style opcode's style mask.
type TextStyle int

const (
	Roman        TextStyle = 0b0000_0001
	Bold         TextStyle = 0b0000_0010
	Italic       TextStyle = 0b0000_0100
	ReverseVideo TextStyle = 0b0000_1000
	FixedPitch   TextStyle = 0b0001_0000
)

// Color is an RGB triple resolved from a Z-machine colour number.
type Color struct {
	R int
	G int
	B int
}

// ToHex renders the colour as a "#rrggbb" string for a terminal UI layer.
func (c Color) ToHex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Font is one of the four fonts the standard defines outside V6's picture
// font.
type Font uint16

const (
	FontNormal     Font = 1
	FontPicture    Font = 2
	FontCharGraphs Font = 3
	FontFixedPitch Font = 4
)

// ScreenModel is deliberately not a V6 screen model: one upper window (a
// fixed-height strip at the top) and one lower (scrolling) window, which
// covers every version this interpreter targets.
type ScreenModel struct {
	LowerWindowActive bool
	CurrentFont       Font

	UpperWindowHeight            int
	UpperWindowForeground        Color
	UpperWindowBackground        Color
	DefaultUpperWindowForeground Color
	DefaultUpperWindowBackground Color
	UpperWindowCursorX           int
	UpperWindowCursorY           int
	UpperWindowTextStyle         TextStyle

	DefaultLowerWindowForeground Color
	DefaultLowerWindowBackground Color
	LowerWindowForeground        Color
	LowerWindowBackground        Color
	LowerWindowTextStyle         TextStyle
}

// ZColor resolves a Z-machine colour number (0 = current, 1 = default, 2-12
// one of the standard's fixed palette) against the active window.
func (m *ScreenModel) ZColor(i uint16, isForeground bool) Color {
	switch i {
	case 0:
		if isForeground {
			return m.LowerWindowForeground
		}
		return m.LowerWindowBackground
	case 1:
		if isForeground {
			if m.LowerWindowActive {
				return m.DefaultLowerWindowForeground
			}
			return m.DefaultUpperWindowForeground
		}
		if m.LowerWindowActive {
			return m.DefaultLowerWindowBackground
		}
		return m.DefaultUpperWindowBackground
	case 2:
		return Color{0, 0, 0}
	case 3:
		return Color{255, 0, 0}
	case 4:
		return Color{0, 255, 0}
	case 5:
		return Color{255, 255, 0}
	case 6:
		return Color{0, 0, 255}
	case 7:
		return Color{255, 0, 255}
	case 8:
		return Color{0, 255, 255}
	case 9:
		return Color{255, 255, 255}
	case 10:
		return Color{192, 192, 192}
	case 11:
		return Color{128, 128, 128}
	case 12:
		return Color{64, 64, 64}
	default:
		return Color{0, 0, 0}
	}
}

func newScreenModel(foreground, background Color) ScreenModel {
	return ScreenModel{
		LowerWindowActive:            true,
		CurrentFont:                  FontNormal,
		UpperWindowHeight:            0,
		DefaultUpperWindowForeground: foreground,
		DefaultUpperWindowBackground: background,
		UpperWindowForeground:        foreground,
		UpperWindowBackground:        background,
		UpperWindowCursorX:           1,
		UpperWindowCursorY:           1,
		UpperWindowTextStyle:         Roman,
		DefaultLowerWindowForeground: background,
		DefaultLowerWindowBackground: foreground,
		LowerWindowForeground:        background,
		LowerWindowBackground:        foreground,
		LowerWindowTextStyle:         Roman,
	}
}
