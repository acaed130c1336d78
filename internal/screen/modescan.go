package screen

// modeScanner recognizes the DEC private-mode CSI sequences that toggle
// cursor visibility, the alternate screen buffer, and mouse reporting. It
// is a plain byte-pattern scanner over the same stream already fed to the
// underlying vt.Terminal, since that library does not expose these flags
// directly (see DESIGN.md).
type modeScanner struct {
	state   scanState
	private bool
	digits  []byte
}

type scanState int

const (
	scanNormal scanState = iota
	scanEsc
	scanCSI
)

func (s *modeScanner) scan(data []byte, cursorHidden, altScreen *bool, mouseMode *MouseMode) {
	for _, b := range data {
		switch s.state {
		case scanNormal:
			if b == 0x1B {
				s.state = scanEsc
			}
		case scanEsc:
			if b == '[' {
				s.state = scanCSI
				s.private = false
				s.digits = s.digits[:0]
			} else {
				s.state = scanNormal
			}
		case scanCSI:
			switch {
			case b == '?':
				s.private = true
			case b >= '0' && b <= '9':
				s.digits = append(s.digits, b)
			case b == ';':
				s.applyDigits(cursorHidden, altScreen, mouseMode, 0)
				s.digits = s.digits[:0]
			case b == 'h' || b == 'l':
				s.applyDigits(cursorHidden, altScreen, mouseMode, finalByteDirection(b))
				s.state = scanNormal
			case b >= 0x40 && b <= 0x7E:
				// Any other CSI final byte ends the sequence without a
				// mode change.
				s.state = scanNormal
			default:
				// Intermediate byte; keep scanning.
			}
		}
	}
}

// finalByteDirection maps 'h' (set) to 1 and 'l' (reset) to -1.
func finalByteDirection(b byte) int {
	if b == 'h' {
		return 1
	}
	return -1
}

func (s *modeScanner) applyDigits(cursorHidden, altScreen *bool, mouseMode *MouseMode, dir int) {
	if !s.private || len(s.digits) == 0 || dir == 0 {
		return
	}
	code := 0
	for _, d := range s.digits {
		code = code*10 + int(d-'0')
	}
	set := dir > 0

	switch code {
	case 25:
		*cursorHidden = !set
	case 1049, 47, 1047:
		*altScreen = set
	case 1000:
		if set {
			*mouseMode = MousePressRelease
		} else {
			*mouseMode = MouseNone
		}
	case 1002:
		if set {
			*mouseMode = MouseButtonEvent
		} else {
			*mouseMode = MouseNone
		}
	case 1003:
		if set {
			*mouseMode = MouseAnyEvent
		} else {
			*mouseMode = MouseNone
		}
	}
}
